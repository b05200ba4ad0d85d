package loaders

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

type ShaderLoader struct{}

// Load reads a SPIR-V binary compiled by the build tooling.
func (sl *ShaderLoader) Load(path, entry string) (metadata.ShaderSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata.ShaderSource{}, errors.Wrapf(err, "reading shader %s", path)
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return metadata.ShaderSource{}, errors.Newf("shader %s is not SPIR-V: size %d", path, len(data))
	}
	magic := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	if magic != spirvMagic {
		return metadata.ShaderSource{}, errors.Newf("shader %s is not SPIR-V: magic %#x", path, magic)
	}
	return metadata.ShaderSource{Path: path, Code: data, Entry: entry}, nil
}
