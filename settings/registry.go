package settings

import (
	"context"

	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/store"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "settings"
)

// Registry loads, validates and persists user preferences.
type Registry struct {
	log   tplog.Logger
	store store.RecordStore
}

func NewRegistry(level tplogcmm.LogLevel, log tplog.Logger, recordStore store.RecordStore) *Registry {
	rLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	return &Registry{
		log:   rLog,
		store: recordStore,
	}
}

// Load returns persisted settings, falling back to defaults when no record
// exists yet.
func (r *Registry) Load(ctx context.Context) (wltypes.Settings, error) {
	s, found, err := r.store.GetSettings(ctx)
	if err != nil {
		return wltypes.DefaultSettings(), werror.NewWithCause(werror.ErrCode_StorageError, "load settings failed", werror.Severity_Medium, true, err)
	}
	if !found {
		return wltypes.DefaultSettings(), nil
	}
	return s, nil
}

func (r *Registry) Validate(s wltypes.Settings) error {
	for flag := range s.Flags {
		if flag == "" {
			return werror.NewValidation("settings flag name must not be empty")
		}
	}
	return nil
}

func (r *Registry) Save(ctx context.Context, s wltypes.Settings) error {
	if err := r.Validate(s); err != nil {
		return err
	}
	if err := r.store.SaveSettings(ctx, s); err != nil {
		return werror.NewWithCause(werror.ErrCode_StorageError, "persist settings failed", werror.Severity_High, true, err)
	}

	r.log.Debugf("settings persisted: autoLock=%v showTestNetworks=%v", s.AutoLock, s.ShowTestNetworks)
	return nil
}
