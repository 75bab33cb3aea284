package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultCurrency валюта платежей, если в настройках не задана другая.
const DefaultCurrency = "GHS"

// Ключи настроек автошколы.
const (
	SettingPaystackPublicKey = "paystackPublicKey"
	SettingPaystackSecretKey = "paystackSecretKey"
	SettingSMTPHost          = "smtpHost"
	SettingSMTPPort          = "smtpPort"
	SettingSMTPUsername      = "smtpUsername"
	SettingSMTPPassword      = "smtpPassword"
	SettingSchoolName        = "schoolName"
	SettingCurrency          = "currency"
)

const maskPrefix = "****"

var knownSettings = map[string]bool{
	SettingPaystackPublicKey: false,
	SettingPaystackSecretKey: true,
	SettingSMTPHost:          false,
	SettingSMTPPort:          false,
	SettingSMTPUsername:      false,
	SettingSMTPPassword:      true,
	SettingSchoolName:        false,
	SettingCurrency:          false,
}

// SettingsRepository описывает хранилище настроек.
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, values map[string]string) error
}

// Settings кэширует настройки в памяти и сохраняет изменения в хранилище.
// Безопасен для конкурентного использования.
type Settings struct {
	repo SettingsRepository

	mu     sync.RWMutex
	values map[string]string
}

// NewSettings создаёт пустой кэш настроек поверх хранилища.
func NewSettings(repo SettingsRepository) *Settings {
	return &Settings{
		repo:   repo,
		values: make(map[string]string),
	}
}

// Load читает настройки из хранилища. Непустые значения из seed
// перекрывают сохранённые и записываются обратно.
func (s *Settings) Load(ctx context.Context, seed map[string]string) error {
	stored, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	changed := make(map[string]string)
	for k, v := range seed {
		if _, ok := knownSettings[k]; !ok || v == "" {
			continue
		}
		if stored[k] != v {
			changed[k] = v
		}
	}

	if len(changed) > 0 {
		if err := s.repo.SaveSettings(ctx, changed); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string, len(stored)+len(changed))
	maps.Copy(s.values, stored)
	maps.Copy(s.values, changed)
	return nil
}

// Get возвращает значение настройки.
func (s *Settings) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// SecretKey возвращает секретный ключ Paystack. Передаётся клиенту шлюза,
// чтобы смена ключа применялась без перезапуска.
func (s *Settings) SecretKey() string {
	return s.Get(SettingPaystackSecretKey)
}

// Masked возвращает все известные настройки, секреты маскируются.
func (s *Settings) Masked() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]string, len(knownSettings))
	for k, secret := range knownSettings {
		v := s.values[k]
		if secret {
			v = maskSecret(v)
		}
		res[k] = v
	}
	return res
}

// Update сохраняет новые значения. Пустое или маскированное значение секрета
// оставляет сохранённый секрет без изменений.
func (s *Settings) Update(ctx context.Context, values map[string]string) (map[string]string, error) {
	changes := make(map[string]string, len(values))
	for k, v := range values {
		secret, ok := knownSettings[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, k)
		}
		v = strings.TrimSpace(v)
		if secret && (v == "" || strings.HasPrefix(v, maskPrefix)) {
			continue
		}
		changes[k] = v
	}

	if len(changes) > 0 {
		if err := s.repo.SaveSettings(ctx, changes); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}

		s.mu.Lock()
		maps.Copy(s.values, changes)
		s.mu.Unlock()
	}

	return s.Masked(), nil
}

func maskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 4:
		return maskPrefix
	default:
		return maskPrefix + v[len(v)-4:]
	}
}

// GetSettings возвращает настройки для панели администратора.
func (s *Service) GetSettings() map[string]string {
	return s.settings.Masked()
}

// UpdateSettings обновляет настройки из панели администратора.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) (map[string]string, error) {
	res, err := s.settings.Update(ctx, values)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	s.logger.Info("settings updated", zap.Strings("keys", keys))
	return res, nil
}
