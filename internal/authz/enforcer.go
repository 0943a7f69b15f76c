package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/example/room-booking/internal/application"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// EnforcerConfig selects where the Casbin model and policy come from. Empty
// paths, or paths that do not exist, fall back to the embedded files.
type EnforcerConfig struct {
	ModelPath  string
	PolicyPath string
}

// Enforcer wraps a Casbin enforcer keyed by role, object and action.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	logger   *slog.Logger
}

// NewEnforcer loads the model and policy described by config.
func NewEnforcer(config EnforcerConfig, logger *slog.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		m   model.Model
		err error
	)
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer, logger: logger}, nil
}

// loadPolicy adds the p and g lines of a CSV policy to enforcer.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			return fmt.Errorf("malformed policy line %q", line)
		}

		switch parts[0] {
		case "p":
			if len(parts) != 4 {
				return fmt.Errorf("malformed policy line %q", line)
			}
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("unknown policy type %q", parts[0])
		}
	}
	return nil
}

// Allowed reports whether role may perform action on object. Empty roles are
// never allowed.
func (e *Enforcer) Allowed(role, object, action string) (bool, error) {
	if e == nil || e.enforcer == nil {
		return false, errors.New("authz: enforcer not initialized")
	}
	if role == "" {
		return false, nil
	}
	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// Can implements application.Policy. Permissions are "object:action" pairs.
// Enforcement errors deny.
func (e *Enforcer) Can(role application.Role, permission application.Permission) bool {
	if e == nil {
		return false
	}
	object, action, ok := strings.Cut(string(permission), ":")
	if !ok {
		return false
	}
	allowed, err := e.Allowed(string(role), object, action)
	if err != nil {
		e.logger.Warn("authorization check failed",
			"role", string(role),
			"permission", string(permission),
			"error", err,
		)
		return false
	}
	return allowed
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
