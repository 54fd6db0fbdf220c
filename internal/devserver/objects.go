package devserver

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// object is a stored blob with the headers it was uploaded with.
type object struct {
	data         []byte
	contentType  string
	cacheControl string
}

// objectStore is the in-memory stand-in for hosted object storage.
// Blobs do not need to outlive the emulator.
type objectStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
}

func newObjectStore() *objectStore {
	return &objectStore{buckets: make(map[string]map[string]object)}
}

func (o *objectStore) put(bucket, key string, obj object, upsert bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.buckets[bucket]
	if !ok {
		b = make(map[string]object)
		o.buckets[bucket] = b
	}
	if _, exists := b[key]; exists && !upsert {
		return false
	}
	b[key] = obj
	return true
}

func (o *objectStore) get(bucket, key string) (object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.buckets[bucket][key]
	return obj, ok
}

func (o *objectStore) remove(bucket string, keys []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, key := range keys {
		delete(o.buckets[bucket], key)
	}
}

// handleUpload accepts raw object bytes, honoring the same 1 MiB cap
// the client enforces so an unpatched client cannot bypass it.
func (s *Server) handleUpload(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, apiError("bad_request", "Object key required"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, s.cfg.MaxObjectSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", "Failed to read body"))
		return
	}
	if int64(len(data)) > s.cfg.MaxObjectSize {
		c.JSON(http.StatusRequestEntityTooLarge, apiError("payload_too_large", "Object exceeds the upload limit"))
		return
	}

	ok := s.objects.put(bucket, key, object{
		data:         data,
		contentType:  c.ContentType(),
		cacheControl: c.GetHeader("Cache-Control"),
	}, c.GetHeader("x-upsert") == "true")
	if !ok {
		c.JSON(http.StatusConflict, apiError("already_exists", "Object already exists"))
		return
	}

	s.metrics.uploads.Inc()
	c.JSON(http.StatusOK, gin.H{"key": bucket + "/" + key})
}

// handleRemove deletes a batch of objects.
func (s *Server) handleRemove(c *gin.Context) {
	var req struct {
		Keys []string `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}
	s.objects.remove(c.Param("bucket"), req.Keys)
	c.Status(http.StatusNoContent)
}

// handlePublicObject serves an object the way a CDN-backed public
// bucket would, no auth.
func (s *Server) handlePublicObject(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	obj, ok := s.objects.get(bucket, key)
	if !ok {
		c.JSON(http.StatusNotFound, apiError("not_found", "Object not found"))
		return
	}
	if obj.cacheControl != "" {
		c.Header("Cache-Control", obj.cacheControl)
	}
	c.Data(http.StatusOK, obj.contentType, obj.data)
}
