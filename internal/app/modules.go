package app

import (
	"github.com/vk/beancharts/internal/registry"
	"github.com/vk/beancharts/modules/fertilizer"
	"github.com/vk/beancharts/modules/field"
)

// coreModules is the definitive list of chart modules compiled into the
// beancharts binary.
var coreModules = []registry.Module{
	&fertilizer.Module{},
	&field.Module{},
}
