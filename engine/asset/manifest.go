package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
	"gopkg.in/yaml.v3"
)

// ManifestFilename is the conventional manifest name inside an asset root.
const ManifestFilename = "assets.yaml"

// MeshSource describes where a mesh comes from: a built-in primitive or a glTF mesh index.
type MeshSource struct {
	Primitive string `yaml:"primitive,omitempty"`
	GLTF      string `yaml:"gltf,omitempty"`
	Index     int    `yaml:"index,omitempty"`
}

// MaterialSource is either an inline material or a reference to a glTF material.
type MaterialSource struct {
	GLTF      string      `yaml:"gltf,omitempty"`
	Index     int         `yaml:"index,omitempty"`
	BaseColor *[4]float32 `yaml:"base_color,omitempty"`
	Metallic  float32     `yaml:"metallic,omitempty"`
	Roughness *float32    `yaml:"roughness,omitempty"`
	Texture   ID          `yaml:"texture,omitempty"`
}

// TextureSource is an image file plus sampler hints.
type TextureSource struct {
	Path   string `yaml:"path"`
	Filter string `yaml:"filter,omitempty"` // linear | nearest
	Wrap   string `yaml:"wrap,omitempty"`   // repeat | clamp | mirror
}

// Manifest maps asset identities to their sources on disk. Relative paths resolve against Root,
// which itself resolves against the manifest's directory.
type Manifest struct {
	Root      string                `yaml:"root,omitempty"`
	Meshes    map[ID]MeshSource     `yaml:"meshes,omitempty"`
	Materials map[ID]MaterialSource `yaml:"materials,omitempty"`
	Textures  map[ID]TextureSource  `yaml:"textures,omitempty"`
	dir       string
}

func (m *Manifest) normalize() {
	if m.Root == "" {
		m.Root = "."
	}
	if !filepath.IsAbs(m.Root) {
		m.Root = filepath.Join(m.dir, m.Root)
	}
	if m.Meshes == nil {
		m.Meshes = map[ID]MeshSource{}
	}
	if m.Materials == nil {
		m.Materials = map[ID]MaterialSource{}
	}
	if m.Textures == nil {
		m.Textures = map[ID]TextureSource{}
	}
	for id, t := range m.Textures {
		if t.Filter == "" {
			t.Filter = "linear"
		}
		if t.Wrap == "" {
			t.Wrap = "repeat"
		}
		m.Textures[id] = t
	}
}

func (m *Manifest) validate() error {
	for id, s := range m.Meshes {
		if (s.Primitive == "") == (s.GLTF == "") {
			return fmt.Errorf("mesh %q: exactly one of primitive or gltf must be set", id)
		}
	}
	for id, s := range m.Textures {
		if s.Path == "" {
			return fmt.Errorf("texture %q: path is required", id)
		}
	}
	for id, s := range m.Materials {
		if s.GLTF == "" && !s.Texture.IsNil() {
			if _, ok := m.Textures[s.Texture]; !ok {
				return fmt.Errorf("material %q: unknown texture %q", id, s.Texture)
			}
		}
	}
	return nil
}

// Resolve turns a manifest-relative path into an absolute one.
func (m *Manifest) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Root, path)
}

// SourcesOf returns the identities whose data is read from the given absolute file path.
func (m *Manifest) SourcesOf(path string) []ID {
	var out []ID
	for _, id := range sortedKeys(m.Textures) {
		if m.Resolve(m.Textures[id].Path) == path {
			out = append(out, id)
		}
	}
	for _, id := range sortedKeys(m.Meshes) {
		if s := m.Meshes[id]; s.GLTF != "" && m.Resolve(s.GLTF) == path {
			out = append(out, id)
		}
	}
	for _, id := range sortedKeys(m.Materials) {
		if s := m.Materials[id]; s.GLTF != "" && m.Resolve(s.GLTF) == path {
			out = append(out, id, embeddedTextureID(id))
		}
	}
	return out
}

// Files returns the absolute paths of every file the manifest reads.
func (m *Manifest) Files() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, t := range m.Textures {
		add(m.Resolve(t.Path))
	}
	for _, s := range m.Meshes {
		if s.GLTF != "" {
			add(m.Resolve(s.GLTF))
		}
	}
	for _, s := range m.Materials {
		if s.GLTF != "" {
			add(m.Resolve(s.GLTF))
		}
	}
	sort.Strings(out)
	return out
}

func (t TextureSource) samplerData() common.SamplerStagingData {
	s := DefaultSampler()
	if t.Filter == "nearest" {
		s.MagFilter = wgpu.FilterModeNearest
		s.MinFilter = wgpu.FilterModeNearest
		s.MipmapFilter = wgpu.MipmapFilterModeNearest
	}
	mode := wgpu.AddressModeRepeat
	switch t.Wrap {
	case "clamp":
		mode = wgpu.AddressModeClampToEdge
	case "mirror":
		mode = wgpu.AddressModeMirrorRepeat
	}
	s.AddressModeU, s.AddressModeV, s.AddressModeW = mode, mode, mode
	return s
}

// embeddedTextureID names the base colour texture carried inside a glTF material.
func embeddedTextureID(material ID) ID {
	return material + "#basecolor"
}

// LoadManifest reads and validates a YAML asset manifest.
//
// Parameters:
//   - path: path to the manifest file
//
// Returns:
//   - *Manifest: the parsed manifest with defaults applied
//   - error: error if the file cannot be read, parsed or validated
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest parses manifest YAML whose relative paths resolve against dir.
func ParseManifest(data []byte, dir string) (*Manifest, error) {
	m := &Manifest{dir: dir}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.normalize()
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func sortedKeys[V any](m map[ID]V) []ID {
	out := make([]ID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
