package components

import (
	"github.com/lanikai/zrtp/internal/registry"
	"github.com/lanikai/zrtp/internal/srtp"
)

func registerAuthTags(r *registry.Registry) {
	register := func(name string) {
		r.Register(&registry.Descriptor{
			Name:     name,
			Category: registry.CategoryAuthTag,
			Impl:     name,
			SelfTest: func() error {
				_, err := srtp.AuthTagBytes(name)
				return err
			},
		})
	}

	register("HS32")
	register("HS80")
}
