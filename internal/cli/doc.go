// Package cli turns the wheelgrid command line into an app.Config. It owns
// flag parsing, usage text and the mapping of invalid input to exit code 2;
// everything after a valid configuration belongs to package app.
package cli
