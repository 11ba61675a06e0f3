package bookings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"booksync/internal/models"

	"github.com/google/uuid"
)

// Store persists the local booking list as a JSON file. Local bookings are
// authoritative: the sync engine only reads them and never writes back.
type Store struct {
	logger *slog.Logger
	path   string
	mu     sync.Mutex
}

func NewStore(logger *slog.Logger, path string) *Store {
	return &Store{logger: logger, path: path}
}

// List returns all locally recorded bookings. A missing file is an empty list.
func (s *Store) List() ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add appends a booking, assigning an id when the caller left it empty.
func (s *Store) Add(booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	all = append(all, booking)
	return s.save(all)
}

// SeedIfEmpty writes a small demo dataset the first time the store is used,
// so the booking views have something to render before any real intake.
func (s *Store) SeedIfEmpty() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if len(all) > 0 {
		return nil
	}
	s.logger.Info("Seeding empty booking store", "file", s.path)
	return s.save(seedBookings())
}

func (s *Store) load() ([]models.Booking, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read booking store: %w", err)
	}
	var all []models.Booking
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse booking store: %w", err)
	}
	return all, nil
}

func (s *Store) save(all []models.Booking) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal booking store: %w", err)
	}
	// The list holds client names and emails; keep it owner-only like the
	// credential store.
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write booking store: %w", err)
	}
	return nil
}

func seedBookings() []models.Booking {
	base := time.Now().AddDate(0, 0, 7).Truncate(time.Hour)
	return []models.Booking{
		{
			ID:            "seed-1",
			Slot:          models.FormatSlot(base),
			Name:          "Jordan Avery",
			Email:         "jordan.avery@example.com",
			Package:       "Asset Protection Trust",
			Stage:         models.StageConfirmed,
			AppointmentAt: base,
		},
		{
			ID:            "seed-2",
			Slot:          models.FormatSlot(base.Add(26 * time.Hour)),
			Name:          "Riley Chen",
			Email:         "riley.chen@example.com",
			Package:       "Consultation",
			Stage:         models.StagePending,
			AppointmentAt: base.Add(26 * time.Hour),
		},
	}
}
