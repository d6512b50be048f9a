package asset

import (
	"fmt"
	"sync"
)

// library is the implementation of the Library interface.
type library struct {
	mu        *sync.RWMutex
	meshes    map[ID]*MeshData
	materials map[ID]*MaterialData
	textures  map[ID]*TextureData
}

// Library is an in-memory Loader. Entries can be added and removed at any time; reads and writes
// are safe from multiple goroutines so background decoders can fill it.
type Library interface {
	Loader

	// PutMesh stores or replaces a mesh under id.
	PutMesh(id ID, m *MeshData)

	// PutMaterial stores or replaces a material under id.
	PutMaterial(id ID, m *MaterialData)

	// PutTexture stores or replaces a texture under id.
	PutTexture(id ID, t *TextureData)

	// Remove deletes every asset kind stored under id.
	Remove(id ID)

	// Has reports whether any asset kind is stored under id.
	Has(id ID) bool
}

var _ Library = &library{}

// NewLibrary creates an empty in-memory asset library.
func NewLibrary() Library {
	return &library{
		mu:        &sync.RWMutex{},
		meshes:    make(map[ID]*MeshData),
		materials: make(map[ID]*MaterialData),
		textures:  make(map[ID]*TextureData),
	}
}

func (l *library) LoadMesh(id ID) (*MeshData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.meshes[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("mesh %q: %w", id, ErrNotFound)
}

func (l *library) LoadMaterial(id ID) (*MaterialData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.materials[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("material %q: %w", id, ErrNotFound)
}

func (l *library) LoadTexture(id ID) (*TextureData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := l.textures[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("texture %q: %w", id, ErrNotFound)
}

func (l *library) PutMesh(id ID, m *MeshData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meshes[id] = m
}

func (l *library) PutMaterial(id ID, m *MaterialData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.materials[id] = m
}

func (l *library) PutTexture(id ID, t *TextureData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.textures[id] = t
}

func (l *library) Remove(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.meshes, id)
	delete(l.materials, id)
	delete(l.textures, id)
}

func (l *library) Has(id ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, m := l.meshes[id]
	_, mat := l.materials[id]
	_, t := l.textures[id]
	return m || mat || t
}
