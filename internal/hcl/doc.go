// Package hcl provides the HCL implementation of config.Loader and the
// expression environment pipeline files are evaluated in.
//
// Files are parsed with hclparse, decoded with gohcl into the `schema`
// structs, and translated into the format-agnostic `config.Model`. Static
// attributes (runs_on, registry urls, matrix axes) are evaluated at load
// time against an environment holding only `env` and the function table;
// `when` conditions and step `arguments` are kept as raw HCL and evaluated
// later, once per job instance, by the planner.
package hcl
