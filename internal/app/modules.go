package app

import (
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/modules/artifacts"
	"github.com/vk/wheelgrid/modules/checkout"
	"github.com/vk/wheelgrid/modules/container_build"
	"github.com/vk/wheelgrid/modules/print"
	"github.com/vk/wheelgrid/modules/publish"
	"github.com/vk/wheelgrid/modules/run"
	"github.com/vk/wheelgrid/modules/sync_sources"
	"github.com/vk/wheelgrid/modules/wheeltest"
)

// coreModules is the definitive list of all modules that are compiled into
// the wheelgrid binary.
var coreModules = []registry.Module{
	&artifacts.Module{},
	&checkout.Module{},
	&container_build.Module{},
	&print.Module{},
	&publish.Module{},
	&run.Module{},
	&sync_sources.Module{},
	&wheeltest.Module{},
}
