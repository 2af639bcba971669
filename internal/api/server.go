package api

import (
	"context"
	"log"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/example/triplehelix/internal/content"
	"github.com/example/triplehelix/internal/database"
	"github.com/example/triplehelix/internal/localstore"
	"github.com/example/triplehelix/internal/persistence"
	"github.com/example/triplehelix/internal/tubes"
)

// Server is the thin HTTP surface over the sequencing core. No business
// logic lives here; handlers translate requests into calls on the
// cycler, buffer and gateway.
type Server struct {
	router  *gin.Engine
	buffer  *content.Buffer
	gateway *persistence.Gateway
	local   *localstore.Store

	snapshots *database.StateSnapshotRepository
	progress  *database.StitchProgressRepository
	sessions  *database.SessionResultRepository
	profiles  *database.ProfileRepository
	contentDB *database.ContentRepository

	mu      sync.Mutex
	cyclers map[string]*tubes.Cycler
}

// NewServer wires the HTTP surface.
func NewServer(buffer *content.Buffer, gateway *persistence.Gateway, local *localstore.Store) *Server {
	s := &Server{
		router:    gin.New(),
		buffer:    buffer,
		gateway:   gateway,
		local:     local,
		snapshots: database.NewStateSnapshotRepository(),
		progress:  database.NewStitchProgressRepository(),
		sessions:  database.NewSessionResultRepository(),
		profiles:  database.NewProfileRepository(),
		contentDB: database.NewContentRepository(),
		cyclers:   make(map[string]*tubes.Cycler),
	}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	player := s.router.Group("/api", identity())
	player.GET("/stitch", s.handleCurrentStitch)
	player.POST("/complete", s.handleComplete)
	player.GET("/state", s.handleState)
	player.GET("/profile", s.handleProfile)
	player.POST("/migrate", s.handleMigrate)
	player.POST("/reset", s.handleReset)

	// Server side of the content API the buffer's client consumes.
	s.router.GET("/content/stitches/:id", s.handleContentStitch)
	s.router.POST("/content/stitches/batch", s.handleContentBatch)
	s.router.GET("/content/manifest", s.handleContentManifest)
}

// Run serves HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() *gin.Engine {
	return s.router
}

// cyclerFor returns the caller's cycler, recovering state local-first
// and seeding from the manifest on first use. State loading, manifest
// fetch and buffer priming can hit the network, so they run outside
// the registry lock; a lost race simply discards the duplicate.
func (s *Server) cyclerFor(ctx context.Context, userID string) (*tubes.Cycler, error) {
	s.mu.Lock()
	if cycler, ok := s.cyclers[userID]; ok {
		s.mu.Unlock()
		return cycler, nil
	}
	s.mu.Unlock()

	state, found := persistence.LoadState(ctx, s.local, s.snapshots, userID)
	if !found {
		seeded, err := tubes.SeedState(userID, s.buffer.Manifest(ctx))
		if err != nil {
			return nil, err
		}
		state = seeded
		log.Printf("Seeded fresh progress state for %s", userID)
	}

	s.mu.Lock()
	if cycler, ok := s.cyclers[userID]; ok {
		s.mu.Unlock()
		return cycler, nil
	}
	cycler := tubes.New(state, s.gateway)
	s.cyclers[userID] = cycler
	s.mu.Unlock()

	s.buffer.Prime(ctx, state)
	return cycler, nil
}

// dropCycler evicts a user's in-memory session, forcing the next
// request to reload state.
func (s *Server) dropCycler(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cyclers, userID)
}
