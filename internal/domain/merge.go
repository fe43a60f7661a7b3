package domain

import (
	"dario.cat/mergo"
)

// Merge overlays the non-zero fields of override onto c. Slices in override
// replace the receiver's slices rather than appending to them.
func (c *Config) Merge(override *Config) error {
	if override == nil {
		return nil
	}

	logger := c.Logger
	src := *override
	src.Logger = nil
	c.Logger = nil

	if err := mergo.Merge(c, src, mergo.WithOverride); err != nil {
		c.Logger = logger
		return NewConfigError("merge", err)
	}

	c.Logger = logger
	if override.Logger != nil {
		c.Logger = override.Logger
	}
	return nil
}

// MergeMeta fills unset fields of meta from defaults.
func MergeMeta(meta, defaults Meta) (Meta, error) {
	out := meta
	if err := mergo.Merge(&out, defaults); err != nil {
		return meta, err
	}
	return out, nil
}
