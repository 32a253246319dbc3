// Package setup holds the active character setup, persists it to the local slot and
// notifies subscribers whenever it changes.
package setup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/pkg/kvstore"
	"ai-character-chat-simulator/backend/pkg/logger"
)

// SlotKey is the key the setup is persisted under
const SlotKey = "ai-character-chat-profiles-with-worldview-v2"

// ErrIncomplete is returned when a conversation is started from an incomplete setup
var ErrIncomplete = errors.New("所有欄位（包括世界觀和模型）都必須填寫。")

// Defaults is the setup shown before anything was saved
func Defaults() models.Setup {
	return models.Setup{
		CharA: models.CharacterProfile{
			Name:        "伊娃船長",
			Identity:    "「奧德賽號」星艦上堅忍的船長",
			Personality: "謹慎、有邏輯、被過去的失敗所困擾，深切關心她的船員。",
		},
		CharB: models.CharacterProfile{
			Name:        "J-4X",
			Identity:    "「奧德賽號」上過度樂觀的安卓助理",
			Personality: "好奇、天真、遵循邏輯得出荒謬的結論，不斷尋求理解人類情感。",
		},
		Worldview: "在一艘名為「奧德賽號」的孤獨星艦上，它正穿越一個未知的小行星帶。通訊系統已損壞，船員們只能依靠自己。",
		Model:     models.DefaultModel,
	}
}

// Validate reports ErrIncomplete unless every field of s is filled in
func Validate(s models.Setup) error {
	if !s.Complete() {
		return ErrIncomplete
	}
	return nil
}

// Observer is called with the new setup after every change
type Observer func(ctx context.Context, s models.Setup)

// Service owns the active setup
type Service struct {
	store kvstore.Store
	log   *logger.Logger

	mu        sync.RWMutex
	current   models.Setup
	observers []Observer
}

// NewService starts from Defaults overlaid with whatever the slot holds.
// Read failures are logged and leave the defaults in place.
func NewService(ctx context.Context, store kvstore.Store, log *logger.Logger) *Service {
	s := &Service{
		store:   store,
		log:     log.WithComponent("setup"),
		current: Defaults(),
	}
	s.load(ctx)
	return s
}

// saved mirrors the slot layout loosely so that non-string values are ignored field by field
type saved struct {
	CharA     *models.CharacterProfile `json:"charA"`
	CharB     *models.CharacterProfile `json:"charB"`
	Worldview json.RawMessage          `json:"worldview"`
	Model     json.RawMessage          `json:"model"`
}

func (s *Service) load(ctx context.Context) {
	raw, err := s.store.Get(ctx, SlotKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.LogError(err, "failed to load setup from store")
		return
	}

	var data saved
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.log.LogError(err, "failed to decode saved setup")
		return
	}
	// Both names are required before anything saved is trusted
	if data.CharA == nil || data.CharA.Name == "" || data.CharB == nil || data.CharB.Name == "" {
		return
	}

	s.current.CharA = *data.CharA
	s.current.CharB = *data.CharB
	var str string
	if json.Unmarshal(data.Worldview, &str) == nil {
		s.current.Worldview = str
	}
	if json.Unmarshal(data.Model, &str) == nil {
		s.current.Model = str
	}
	s.log.Info("loaded saved setup", "char_a", s.current.CharA.Name, "char_b", s.current.CharB.Name)
}

// Current returns the active setup
func (s *Service) Current() models.Setup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for every later change
func (s *Service) Subscribe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Update replaces the active setup, persists it and notifies observers.
// Persistence failures are logged only.
func (s *Service) Update(ctx context.Context, next models.Setup) models.Setup {
	s.mu.Lock()
	s.current = next
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.persist(ctx, next)
	for _, fn := range observers {
		fn(ctx, next)
	}
	return next
}

func (s *Service) persist(ctx context.Context, next models.Setup) {
	data, err := json.Marshal(next)
	if err != nil {
		s.log.LogError(err, "failed to encode setup")
		return
	}
	if err := s.store.Set(ctx, SlotKey, string(data)); err != nil {
		s.log.LogError(err, "failed to save setup to store")
	}
}
