package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It returns nil when all configured values are valid; unset keys fall back to defaults.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateFilesConfig(get, &validationErrs)
	validateFilesDBConfig(get, &validationErrs)
	validateBlobBackendConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateFilesConfig validates upload limits and pipeline toggles.
func validateFilesConfig(get configGetter, errs *[]string) {
	validateOptionalInt64Min(get, "settings.files.max_upload_bytes", 1, errs)
	validateOptionalIntMin(get, "settings.files.request_timeout_ms", 1, errs)
	validateOptionalBool(get, "settings.files.sweep_on_start", errs)
}

// validateFilesDBConfig validates the metadata database connection.
func validateFilesDBConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, "settings.db.files.addr", errs)
	validateOptionalStringNonEmpty(get, "settings.db.files.db", errs)

	if raw := get("settings.db.files.addr"); raw != nil {
		if addr, err := parseStrictString(raw); err == nil && !isValidHost(addr) {
			appendValidationError(errs, "settings.db.files.addr must be host:port without scheme")
		}
	}
}

// validateBlobBackendConfig validates the blob backend selection and its settings.
func validateBlobBackendConfig(get configGetter, errs *[]string) {
	backend := blobBackendGridFS
	if raw := get("settings.files.blob_backend"); raw != nil {
		value, err := parseStrictString(raw)
		if err != nil {
			appendValidationError(errs, "settings.files.blob_backend must be a string")
			return
		}
		backend = strings.TrimSpace(value)
	}

	switch backend {
	case "", blobBackendGridFS:
		validateOptionalStringNonEmpty(get, "settings.files.gridfs.bucket", errs)
	case blobBackendMinio:
		for _, key := range []string{
			"settings.files.minio.endpoint",
			"settings.files.minio.bucket",
		} {
			if get(key) == nil {
				appendValidationError(errs, "%s is required when blob_backend is minio", key)
				continue
			}
			validateOptionalStringNonEmpty(get, key, errs)
		}
		validateOptionalBool(get, "settings.files.minio.secure", errs)
		if raw := get("settings.files.minio.endpoint"); raw != nil {
			if endpoint, err := parseStrictString(raw); err == nil && strings.TrimSpace(endpoint) != "" && !isValidHost(endpoint) {
				appendValidationError(errs, "settings.files.minio.endpoint must be host:port without scheme")
			}
		}
	default:
		appendValidationError(errs, "settings.files.blob_backend must be %q or %q", blobBackendGridFS, blobBackendMinio)
	}
}

// validateWebConfig validates CORS host entries.
func validateWebConfig(get configGetter, errs *[]string) {
	raw := get("settings.web.cors_allowed_hosts")
	if raw == nil {
		return
	}

	hosts, ok := raw.([]any)
	if !ok {
		if strs, isStrs := raw.([]string); isStrs {
			for _, h := range strs {
				hosts = append(hosts, h)
			}
		} else {
			appendValidationError(errs, "settings.web.cors_allowed_hosts must be a list of hosts")
			return
		}
	}

	for i, h := range hosts {
		host, err := parseStrictString(h)
		if err != nil || !isValidHost(host) {
			appendValidationError(errs, "settings.web.cors_allowed_hosts[%d] must be a bare host", i)
		}
	}
}

// validateOptionalBool validates an optionally configured boolean key.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalInt64Min validates an optionally configured int64 key with a minimum constraint.
func validateOptionalInt64Min(get configGetter, key string, min int64, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictInt64 parses a value as a strict int64.
func parseStrictInt64(value any) (int64, error) {
	parsed, err := parseStrictInt(value)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(parsed), nil
}

// parseStrictString parses a value as a strict string.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// isValidHost validates a host string without scheme or path components.
func isValidHost(host string) bool {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") {
		return false
	}
	return true
}

// appendValidationError appends a formatted validation error to the collector.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
