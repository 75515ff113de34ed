package app

import "github.com/spf13/pflag"

// RegisterLogFlags registers the logging flags
func RegisterLogFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
}

// RegisterStoreFlags registers the record store flags
func RegisterStoreFlags(flags *pflag.FlagSet) {
	flags.String("store-driver", "", "Record store driver: sqlite, postgres or json")
	flags.String("store-dsn", "", "Record store data source name (sqlite path or postgres URL)")
	flags.String("store-table", "", "Record table name")
	flags.String("store-file", "", "Record file for the json driver")
}

// RegisterCacheFlags registers the index cache flags
func RegisterCacheFlags(flags *pflag.FlagSet) {
	flags.StringP("cache-path", "c", "", "Index cache file")
	flags.Duration("cache-lock-timeout", 0, "How long to wait for another run building the index")
	flags.Bool("rebuild", false, "Invalidate the index cache before running")
}

// RegisterFindFlags registers the flags of the find-duplicates command
func RegisterFindFlags(flags *pflag.FlagSet) {
	RegisterLogFlags(flags)
	RegisterStoreFlags(flags)
	RegisterCacheFlags(flags)
	flags.StringP("export-path", "o", "", "Duplicates export file")
	flags.Float64P("name-distance", "d", 0, "Maximum distance in meters for a name match")
}

// RegisterInvalidateFlags registers the flags of the invalidate-cache command
func RegisterInvalidateFlags(flags *pflag.FlagSet) {
	RegisterLogFlags(flags)
	flags.StringP("cache-path", "c", "", "Index cache file")
}

// RegisterImportFlags registers the flags of the import command
func RegisterImportFlags(flags *pflag.FlagSet) {
	RegisterLogFlags(flags)
	RegisterStoreFlags(flags)
	flags.StringP("from", "f", "", "JSON array of records to import")
}

// RegisterServeFlags registers the flags of the serve command
func RegisterServeFlags(flags *pflag.FlagSet) {
	RegisterLogFlags(flags)
	RegisterStoreFlags(flags)
	RegisterCacheFlags(flags)
	flags.Float64P("name-distance", "d", 0, "Maximum distance in meters for a name match")
	flags.Int("search-max-results", 0, "Maximum number of records returned by search_records")
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
}
