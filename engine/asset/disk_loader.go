package asset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/fsnotify/fsnotify"
)

// diskLoader is the implementation of the DiskLoader interface.
type diskLoader struct {
	manifest *Manifest
	cache    Library
	logger   *slog.Logger
	workers  int

	// gltf documents parsed once per file until invalidated
	gltfMu *sync.Mutex
	gltf   map[string]*gltfFile

	pool worker.DynamicWorkerPool

	changedMu *sync.Mutex
	changed   map[ID]struct{}
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// DiskLoader is a Loader backed by a YAML manifest. Assets are decoded on first request and kept in
// memory until their source file changes.
type DiskLoader interface {
	Loader

	// Manifest returns the parsed manifest.
	Manifest() *Manifest

	// Preload decodes every manifest asset in parallel on the worker pool and blocks until done.
	// Failures are logged and returned joined; successfully decoded assets stay cached.
	//
	// Parameters:
	//   - progress: optional callback invoked after each asset with the running count and total
	//
	// Returns:
	//   - error: the joined decode errors, or nil
	Preload(progress func(done, total int)) error

	// Watch starts watching every manifest source file. Changed files evict their assets from memory
	// and queue the affected identities for DrainChanged.
	//
	// Returns:
	//   - error: error if the watcher cannot be created
	Watch() error

	// DrainChanged returns and clears the identities whose sources changed since the last call.
	// Call it from the render thread between frames and feed the result to the GPU cache.
	//
	// Returns:
	//   - []ID: the changed identities, in no particular order
	DrainChanged() []ID

	// Close stops the watcher and the worker pool.
	Close() error
}

var _ DiskLoader = &diskLoader{}

// NewDiskLoader creates a loader for the manifest at manifestPath.
//
// Parameters:
//   - manifestPath: path to the YAML manifest
//   - options: functional options
//
// Returns:
//   - DiskLoader: the loader
//   - error: error if the manifest cannot be loaded
func NewDiskLoader(manifestPath string, options ...DiskLoaderBuilderOption) (DiskLoader, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return newDiskLoader(m, options...), nil
}

func newDiskLoader(m *Manifest, options ...DiskLoaderBuilderOption) *diskLoader {
	l := &diskLoader{
		manifest:  m,
		cache:     NewLibrary(),
		logger:    common.NopLogger(),
		workers:   4,
		gltfMu:    &sync.Mutex{},
		gltf:      make(map[string]*gltfFile),
		changedMu: &sync.Mutex{},
		changed:   make(map[ID]struct{}),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *diskLoader) Manifest() *Manifest {
	return l.manifest
}

func (l *diskLoader) LoadMesh(id ID) (*MeshData, error) {
	if m, err := l.cache.LoadMesh(id); err == nil {
		return m, nil
	}
	src, ok := l.manifest.Meshes[id]
	if !ok {
		return nil, fmt.Errorf("mesh %q: %w", id, ErrNotFound)
	}

	var mesh *MeshData
	var err error
	if src.Primitive != "" {
		mesh, err = Primitive(src.Primitive)
	} else {
		var f *gltfFile
		if f, err = l.openGLTF(src.GLTF); err == nil {
			mesh, err = f.mesh(src.Index)
		}
	}
	if err == nil {
		err = mesh.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("mesh %q: %w", id, err)
	}
	l.cache.PutMesh(id, mesh)
	return mesh, nil
}

func (l *diskLoader) LoadMaterial(id ID) (*MaterialData, error) {
	if m, err := l.cache.LoadMaterial(id); err == nil {
		return m, nil
	}
	src, ok := l.manifest.Materials[id]
	if !ok {
		return nil, fmt.Errorf("material %q: %w", id, ErrNotFound)
	}

	if src.GLTF == "" {
		mat := DefaultMaterialData()
		mat.Name = string(id)
		if src.BaseColor != nil {
			mat.BaseColor = *src.BaseColor
		}
		if src.Roughness != nil {
			mat.Roughness = *src.Roughness
		}
		mat.Metallic = src.Metallic
		mat.BaseColorTexture = src.Texture
		l.cache.PutMaterial(id, &mat)
		return &mat, nil
	}

	f, err := l.openGLTF(src.GLTF)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", id, err)
	}
	mat, tex, err := f.material(src.Index)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", id, err)
	}
	if tex != nil {
		texID := embeddedTextureID(id)
		l.cache.PutTexture(texID, tex)
		mat.BaseColorTexture = texID
	}
	l.cache.PutMaterial(id, mat)
	return mat, nil
}

func (l *diskLoader) LoadTexture(id ID) (*TextureData, error) {
	if t, err := l.cache.LoadTexture(id); err == nil {
		return t, nil
	}
	src, ok := l.manifest.Textures[id]
	if !ok {
		return nil, fmt.Errorf("texture %q: %w", id, ErrNotFound)
	}
	data, err := os.ReadFile(l.manifest.Resolve(src.Path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("texture %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("texture %q: %w", id, err)
	}
	pixels, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", id, err)
	}
	tex := &TextureData{Name: string(id), Pixels: pixels, Sampler: src.samplerData()}
	l.cache.PutTexture(id, tex)
	return tex, nil
}

// openGLTF returns the parsed document for a manifest-relative path, parsing it on first use.
func (l *diskLoader) openGLTF(rel string) (*gltfFile, error) {
	path := l.manifest.Resolve(rel)
	l.gltfMu.Lock()
	defer l.gltfMu.Unlock()
	if f, ok := l.gltf[path]; ok {
		return f, nil
	}
	f, err := openGLTF(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return nil, err
	}
	l.gltf[path] = f
	return f, nil
}

type preloadJob struct {
	id   ID
	load func(ID) error
}

func (l *diskLoader) preloadJobs() []preloadJob {
	var jobs []preloadJob
	for _, id := range sortedKeys(l.manifest.Textures) {
		jobs = append(jobs, preloadJob{id, func(id ID) error { _, err := l.LoadTexture(id); return err }})
	}
	for _, id := range sortedKeys(l.manifest.Meshes) {
		jobs = append(jobs, preloadJob{id, func(id ID) error { _, err := l.LoadMesh(id); return err }})
	}
	for _, id := range sortedKeys(l.manifest.Materials) {
		jobs = append(jobs, preloadJob{id, func(id ID) error { _, err := l.LoadMaterial(id); return err }})
	}
	return jobs
}

func (l *diskLoader) Preload(progress func(done, total int)) error {
	jobs := l.preloadJobs()
	if len(jobs) == 0 {
		return nil
	}
	if l.pool == nil {
		l.pool = worker.NewDynamicWorkerPool(l.workers, len(jobs), time.Second)
	}

	// the pool's own Wait tracks idle workers, so a WaitGroup is the per-call barrier
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		done  int
		errs  []error
		start = time.Now()
	)
	for i, job := range jobs {
		wg.Add(1)
		l.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: job.id,
			Do: func() (any, error) {
				defer wg.Done()
				err := job.load(job.id)
				mu.Lock()
				defer mu.Unlock()
				done++
				if err != nil {
					errs = append(errs, err)
					l.logger.Warn("[Assets] preload failed", "id", job.id, "error", err)
				}
				if progress != nil {
					progress(done, len(jobs))
				}
				return nil, err
			},
		})
	}
	wg.Wait()

	l.logger.Info("[Assets] preload complete", "assets", len(jobs), "failed", len(errs), "elapsed", time.Since(start))
	return errors.Join(errs...)
}

func (l *diskLoader) Watch() error {
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	// watch directories so editors that replace files atomically still trigger events
	dirs := map[string]bool{}
	for _, f := range l.manifest.Files() {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			l.logger.Warn("[Assets] cannot watch directory", "dir", dir, "error", err)
		}
	}

	l.watcher = w
	l.done = make(chan struct{})
	go l.watchLoop(w, l.done)
	l.logger.Debug("[Assets] watching asset sources", "dirs", len(dirs))
	return nil
}

func (l *diskLoader) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				path = event.Name
			}
			l.sourceChanged(path)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("[Assets] watcher error", "error", err)
		}
	}
}

// sourceChanged evicts every asset read from path and queues it for GPU invalidation.
func (l *diskLoader) sourceChanged(path string) {
	ids := l.manifest.SourcesOf(path)
	if len(ids) == 0 {
		return
	}
	l.gltfMu.Lock()
	delete(l.gltf, path)
	l.gltfMu.Unlock()

	l.changedMu.Lock()
	defer l.changedMu.Unlock()
	for _, id := range ids {
		l.cache.Remove(id)
		l.changed[id] = struct{}{}
	}
	l.logger.Debug("[Assets] source changed", "path", path, "assets", len(ids))
}

func (l *diskLoader) DrainChanged() []ID {
	l.changedMu.Lock()
	defer l.changedMu.Unlock()
	if len(l.changed) == 0 {
		return nil
	}
	out := make([]ID, 0, len(l.changed))
	for id := range l.changed {
		out = append(out, id)
	}
	clear(l.changed)
	return out
}

func (l *diskLoader) Close() error {
	var err error
	if l.watcher != nil {
		close(l.done)
		err = l.watcher.Close()
		l.watcher = nil
	}
	if l.pool != nil {
		l.pool.Stop()
		l.pool = nil
	}
	return err
}
