package templates

import (
	"github.com/pthm/hxstream"
)

// Component builds a descriptor rendering <name>.html, with
// <name>--error.html as its error template when that file exists.
func Component(c *Cache, name string, load hxstream.LoadFunc) *hxstream.Descriptor {
	d := hxstream.NewDescriptor(name, load, c.Template(name+Extension))
	if errFile := name + ErrorSuffix + Extension; c.Exists(errFile) {
		d.WithErrorTemplate(c.ErrorTemplate(errFile))
	}
	return d
}
