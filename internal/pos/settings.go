package pos

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
)

// LogoBucket is the object storage bucket of uploaded store logos
const LogoBucket = "logos"

// SettingsInput carries the store identity printed on receipts
type SettingsInput struct {
	StoreName    string `json:"store_name" validate:"required"`
	StoreLogo    string `json:"store_logo"`
	StoreAddress string `json:"store_address"`
	StorePhone   string `json:"store_phone"`
	ReceiptNotes string `json:"receipt_notes"`
}

// Settings returns the current store identity, with defaults for unset name and notes
func (s *Store) Settings() domain.StoreSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsLocked()
}

// SaveSettings upserts the settings row of operatorID
func (s *Store) SaveSettings(ctx context.Context, operatorID int64, in SettingsInput) (*domain.StoreSettings, error) {
	if strings.TrimSpace(in.StoreName) == "" {
		s.notify("", LevelError, "errorSaveSettings", nil)
		return nil, ErrStoreNameRequired
	}
	row := &domain.StoreSettings{
		ID:           common.UUIDint64(),
		OperatorID:   operatorID,
		StoreName:    strings.TrimSpace(in.StoreName),
		StoreLogo:    in.StoreLogo,
		StoreAddress: in.StoreAddress,
		StorePhone:   in.StorePhone,
		ReceiptNotes: in.ReceiptNotes,
	}
	if err := s.repo.UpsertSettings(ctx, row); err != nil {
		zap.L().Error("save settings error", zap.String("namespace", "pos"), zap.Int64("operator_id", operatorID), zap.Error(err))
		s.notify("", LevelError, "errorSaveSettings", nil)
		return nil, err
	}
	s.mu.Lock()
	cached := *row
	s.settings = &cached
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastStoreUpdated", nil)
	return row, nil
}

// UploadLogo stores a logo image for operatorID and returns its public URL
func (s *Store) UploadLogo(ctx context.Context, operatorID int64, filename string, data []byte) (string, error) {
	if s.objects == nil {
		return "", ErrNoObjectStore
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("%d/%s%s", operatorID, common.UUIDString(), ext)
	if err := s.objects.Put(LogoBucket, key, data); err != nil {
		zap.L().Error("upload logo error", zap.String("namespace", "pos"), zap.String("key", key), zap.Error(err))
		s.notify("", LevelError, "errorLogoUpload", map[string]any{"error": err.Error()})
		return "", err
	}
	s.notify("", LevelSuccess, "toastLogoUploaded", nil)
	return s.objects.PublicURL(LogoBucket, key), nil
}
