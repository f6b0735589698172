package bot

import (
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/config"
	"github.com/sshindanai/discord-calendar-bot/server/helper"
	"github.com/sshindanai/discord-calendar-bot/server/internal/repository"
	"github.com/sshindanai/discord-calendar-bot/server/internal/service"
	"gorm.io/gorm"
)

type InternalService struct {
	db                  *gorm.DB
	credentialService   service.CredentialService
	settingsService     service.SettingsService
	reminderMarkService service.ReminderMarkService
	rsvpService         service.RSVPService
	levelService        service.LevelService
}

// NewInternalService opens and migrates the database and builds the services on top.
func NewInternalService(cfg *config.Config, logger *log.Logger) (*InternalService, error) {
	db, err := repository.Open(cfg.DBDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		_ = repository.Close(db)
		return nil, err
	}
	cipher, err := helper.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		_ = repository.Close(db)
		return nil, errors.Wrap(err, "failed to create token cipher")
	}
	return newInternalService(db, cipher, logger), nil
}

func newInternalService(db *gorm.DB, cipher *helper.Cipher, logger *log.Logger) *InternalService {
	return &InternalService{
		db:                  db,
		credentialService:   service.NewCredentialService(repository.NewCalendarRepository(db), cipher, logger),
		settingsService:     service.NewSettingsService(repository.NewReminderSettingRepository(db), repository.NewDigestSettingRepository(db)),
		reminderMarkService: service.NewReminderMarkService(repository.NewReminderSentRepository(db)),
		rsvpService:         service.NewRSVPService(repository.NewRSVPRepository(db)),
		levelService:        service.NewLevelService(repository.NewLevelRepository(db)),
	}
}

func (s *InternalService) Close() error {
	return repository.Close(s.db)
}
