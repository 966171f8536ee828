package constants

// CLIName is the name used in user-facing output to refer to the command line tool
const CLIName = "drone-ls"

// ServerName is reported to language clients during initialization
const ServerName = "drone-ci-ex-helper"

// Diagnostic source tags shown next to every diagnostic
const (
	ParserSource = "Drone CI"
	SchemaSource = "Drone CI Schema"
)

// ConfigurationSection is the client settings section read by the language server
const ConfigurationSection = "droneCI"

// ValidateNotification is the custom notification that forces revalidation of a document
const ValidateNotification = "droneCI/validate"

// LanguageID is the document language the server attaches to
const LanguageID = "drone-yaml"

// SettingsFileName is the per-project settings file read by the CLI
const SettingsFileName = ".drone-ls.yaml"

// DefaultPipelineFiles are the file names picked up when no files are given on the command line
var DefaultPipelineFiles = []string{
	".drone.yml",
	".drone.yaml",
}

// AllowedSchemaHosts lists the hosts a remote schema may be fetched from
var AllowedSchemaHosts = []string{
	"json.schemastore.org",
	"raw.githubusercontent.com",
	"www.schemastore.org",
}

// DocumentationURL is linked from hover text
const DocumentationURL = "https://docs.drone.io/"

// AllowedDocumentationDomains lists the domains links in hover text may point to.
// Subdomains are allowed too.
var AllowedDocumentationDomains = []string{
	"drone.io",
	"docs.docker.com",
	"kubernetes.io",
	"github.com",
	"schemastore.org",
}
