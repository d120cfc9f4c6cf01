package plan

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/event"
	"github.com/vk/wheelgrid/internal/gate"
	hclload "github.com/vk/wheelgrid/internal/hcl"
	"github.com/vk/wheelgrid/internal/matrix"
)

func eventValue(ev event.Event) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"kind":           cty.StringVal(string(ev.Kind)),
		"type":           cty.StringVal(string(ev.Type())),
		"ref":            cty.StringVal(ev.Ref),
		"branch":         cty.StringVal(ev.Branch()),
		"tag":            cty.StringVal(ev.Tag()),
		"release_tag":    cty.StringVal(ev.ReleaseTag),
		"release_action": cty.StringVal(ev.ReleaseAction),
	})
}

func gateValue(d gate.Decision) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"staging":    cty.BoolVal(d.Staging),
		"production": cty.BoolVal(d.Production),
		"target":     cty.StringVal(string(d.Target())),
	})
}

func jobValue(job *config.Job, instanceID string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"id":       cty.StringVal(job.ID()),
		"kind":     cty.StringVal(string(job.Kind)),
		"name":     cty.StringVal(job.Name),
		"platform": cty.StringVal(job.Platform),
		"runs_on":  cty.StringVal(job.RunsOn),
		"instance": cty.StringVal(instanceID),
	})
}

func instanceVariables(ev event.Event, d gate.Decision, job *config.Job, cell matrix.Cell, instanceID string, env map[string]string) map[string]cty.Value {
	vars := hclload.StaticVariables(env)
	vars["event"] = eventValue(ev)
	vars["gate"] = gateValue(d)
	vars["matrix"] = cell.Value()
	vars["job"] = jobValue(job, instanceID)
	return vars
}
