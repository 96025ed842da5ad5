package web

import (
	"github.com/kozaktomas/face-service/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.config, s.det, s.pool, s.engine)
	processHandler := handlers.NewProcessHandler(s.config, s.pool)
	compareHandler := handlers.NewCompareHandler(s.config, s.det, s.engine)

	s.router.Get("/health", healthHandler.Health)
	s.router.Get("/status", healthHandler.Status)
	s.router.Post("/process-photo", processHandler.ProcessPhoto)
	s.router.Post("/compare-faces", compareHandler.CompareFaces)
}
