package config

import (
	"path/filepath"

	"github.com/CTAG07/Stitch/pkg/assembly"
)

// gaSources lists the GameAnalytics SDK fragments, keyed by the name used
// in their placeholder, in the order the SDK template expects them.
var gaSources = []struct {
	name string
	path []string
}{
	{"GameAnalyticsServer", []string{"GameAnalyticsServer.server.lua"}},
	{"GameAnalyticsServerInitUsingSettings", []string{"GameAnalyticsServerInitUsingSettings.server.lua"}},
	{"INSTALL", []string{"INSTALL.txt"}},
	{"GameAnalyticsClient", []string{"GameAnalyticsClient.client.lua"}},
	{"GameAnalytics", []string{"GameAnalytics", "init.lua"}},
	{"Settings", []string{"GameAnalytics", "Settings.lua"}},
	{"HttpApi", []string{"GameAnalytics", "HttpApi", "init.lua"}},
	{"lockbox", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "init.lua"}},
	{"stream", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "util", "stream.lua"}},
	{"queue", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "util", "queue.lua"}},
	{"array", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "util", "array.lua"}},
	{"base64", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "util", "base64.lua"}},
	{"util_bit", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "util", "bit.lua"}},
	{"hmac", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "mac", "hmac.lua"}},
	{"sha2_256", []string{"GameAnalytics", "HttpApi", "Encoding", "lockbox", "digest", "sha2_256.lua"}},
	{"bit", []string{"GameAnalytics", "HttpApi", "Encoding", "bit.lua"}},
	{"Logger", []string{"GameAnalytics", "Logger.lua"}},
	{"Store", []string{"GameAnalytics", "Store.lua"}},
	{"Events", []string{"GameAnalytics", "Events.lua"}},
	{"Utilities", []string{"GameAnalytics", "Utilities.lua"}},
	{"Version", []string{"GameAnalytics", "Version.lua"}},
	{"State", []string{"GameAnalytics", "State.lua"}},
	{"Validation", []string{"GameAnalytics", "Validation.lua"}},
	{"Threading", []string{"GameAnalytics", "Threading.lua"}},
	{"GAErrorSeverity", []string{"GameAnalytics", "GAErrorSeverity.lua"}},
	{"GAProgressionStatus", []string{"GameAnalytics", "GAProgressionStatus.lua"}},
	{"GAResourceFlowType", []string{"GameAnalytics", "GAResourceFlowType.lua"}},
}

// Example returns a starter configuration that packages the GameAnalytics
// Roblox SDK into a single .rbxmx model. Tokens are wrapped in braces so
// that names such as bit and util_bit do not contain each other.
func Example() *Config {
	entries := make([]assembly.Entry, 0, len(gaSources))
	for _, s := range gaSources {
		entries = append(entries, assembly.Entry{
			Token:  "{{" + s.name + "_BODY}}",
			Source: filepath.Join(s.path...),
		})
	}

	cfg := Default()
	cfg.Variants = []*Variant{
		{
			Name:        "release",
			Template:    "GameAnalyticsSDK.rbxmx.tmp",
			Output:      filepath.Join("release", "GameAnalyticsSDK.rbxmx"),
			FragmentDir: "GameAnalyticsSDK",
			Entries:     entries,
		},
	}
	return cfg
}
