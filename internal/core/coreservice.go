package core

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slipledger/server/internal/backend/database"
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	return &CoreService{
		config:          config,
		databaseService: databaseService,
	}, nil
}

// Database exposes the record store for components that write to it.
func (service *CoreService) Database() database.DatabaseService {
	return service.databaseService
}

// AllSlips returns every slip record, most recent first.
func (service *CoreService) AllSlips() ([]*database.SlipRecord, error) {
	return service.databaseService.GetAllSlips()
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Str("type", config.Database.Type).Msg("database initialized successfully")
	return databaseService, nil
}
