// Package registry is the glue between pipeline steps and the Go code that
// implements them.
//
// Every step action (checkout, run, upload_artifact, ...) is registered under
// its name together with a constructor for its input struct. The planner
// decodes each step's `arguments` block into that struct with gohcl before
// anything runs, so a typo in a pipeline file is a definition-time error. At
// run time the runner hands the decoded input to the action's function along
// with a StepEnv describing the job instance it runs in.
package registry
