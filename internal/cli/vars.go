package cli

import (
	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/internal/integration"
	"github.com/taskdeck/taskdeck/internal/observability"
	"github.com/taskdeck/taskdeck/internal/resilience"
	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *models.Config

	Client integration.TaskMasterClient
	Probe  integration.ConnectivityProbe

	Router *fallback.Router
	Cache  *storage.Store

	Runner     *resilience.Executor
	Classifier *resilience.Classifier

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
)
