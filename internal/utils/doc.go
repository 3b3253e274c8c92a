// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses ConfigurationLoader (Viper, dotenv files, and mapstructure decode
// hooks) and LoggerFactory (zap) along with a flushing writer for console output.
package utils
