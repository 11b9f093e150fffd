package components

import "github.com/lanikai/zrtp/internal/registry"

func registerSAS(r *registry.Registry) {
	r.Register(&registry.Descriptor{
		Name:     "B32 ",
		Category: registry.CategorySAS,
		Impl:     "B32 ",
		SelfTest: func() error { return nil },
	})
}
