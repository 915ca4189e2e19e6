package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ultidisk/internal/api"
	"ultidisk/internal/catalogdb"
	"ultidisk/internal/config"
	"ultidisk/internal/logging"
	"ultidisk/internal/notifications"
	"ultidisk/internal/ultimate"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) deviceClient() (*ultimate.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ultimate.NewFromConfig(cfg, c.loggerValue()), nil
}

// resolveDeviceID prefers the configured id, then asks the device, then
// falls back to the only catalog on record so offline browsing still works.
func (c *commandContext) resolveDeviceID(ctx context.Context, client *ultimate.Client, store *catalogdb.Store) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if id := strings.TrimSpace(cfg.Device.ID); id != "" {
		return id, nil
	}
	id, lookupErr := client.DeviceID(ctx)
	if lookupErr == nil {
		return id, nil
	}
	if errors.Is(lookupErr, context.Canceled) {
		return "", lookupErr
	}
	devices, err := store.Devices(ctx)
	if err == nil && len(devices) == 1 {
		logging.WarnWithContext(c.loggerValue(), "device unreachable; using cached catalog", "device_offline",
			logging.String(logging.FieldDeviceID, devices[0].DeviceID),
			logging.Error(lookupErr),
			logging.String(logging.FieldImpact, "drive commands will fail until the device answers"),
			logging.String(logging.FieldErrorHint, "check device.base_url or set device.id"),
		)
		return devices[0].DeviceID, nil
	}
	return "", fmt.Errorf("identify device: %w (set device.id to work offline)", lookupErr)
}

type serviceOptions struct {
	// refresh polls drive status before running so views reflect the device.
	refresh bool
}

func (c *commandContext) withService(cmd *cobra.Command, opts serviceOptions, fn func(*api.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := c.loggerValue()

	client, err := c.deviceClient()
	if err != nil {
		return err
	}
	store, err := catalogdb.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	unlock, err := store.Lock(ctx)
	if err != nil {
		return fmt.Errorf("lock catalog: %w", err)
	}
	defer unlock()

	deviceID, err := c.resolveDeviceID(ctx, client, store)
	if err != nil {
		return err
	}
	ctx = logging.WithDeviceID(ctx, deviceID)
	cmd.SetContext(ctx)

	svc := api.NewService(api.Options{
		DeviceID:         deviceID,
		Drives:           client,
		Power:            client,
		Catalog:          store,
		Notifier:         notifications.NewService(cfg, cmd.ErrOrStderr()),
		Logger:           logger,
		ScanWorkers:      cfg.Scan.Workers,
		ProgressInterval: cfg.ScanProgressInterval(),
	})
	if err := svc.Load(ctx); err != nil {
		return err
	}
	if opts.refresh {
		snap, err := client.Drives(ctx)
		if err != nil {
			logging.WarnWithContext(logger, "drive status unavailable", "drive_poll_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "drive views reflect the last known overrides only"),
				logging.String(logging.FieldErrorHint, "check device.base_url and device.password"),
			)
		} else if err := svc.Reconcile(ctx, snap); err != nil {
			return err
		}
	}
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
