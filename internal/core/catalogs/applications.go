package catalogs

import "github.com/JonMunkholm/catalog-import/internal/core"

// ApplicationType is the element type imported by the application catalog.
const ApplicationType = "application"

var (
	applicationTypes  = []string{"COTS", "SaaS", "PaaS", "Custom", "Open Source"}
	lifecycleStatuses = []string{"Planned", "Active", "Phase Out", "Retired"}
	criticalityLevels = []string{"Low", "Medium", "High", "Mission Critical"}
	hostingTypes      = []string{"On-Premise", "Cloud", "Hybrid"}
)

func init() {
	core.RegisterCatalog(core.Catalog{
		ElementType: ApplicationType,
		Label:       "Applications",
		KeyFields:   []string{core.KeyApplicationCode, core.KeyName},
		Fields: []core.TargetFieldDefinition{
			{
				Key:       core.KeyName,
				Label:     "Name",
				Required:  true,
				Kind:      core.FieldText,
				SafeText:  true,
				MaxLength: 200,
				Aliases:   []string{"application name", "app name", "application", "app", "title"},
			},
			{
				Key:       core.KeyApplicationCode,
				Label:     "Application Code",
				Kind:      core.FieldText,
				SafeText:  true,
				MaxLength: 50,
				Aliases:   []string{"code", "app code", "app id", "application id", "short name"},
			},
			{
				Key:       "description",
				Label:     "Description",
				Kind:      core.FieldText,
				SafeText:  true,
				MaxLength: 4000,
				Aliases:   []string{"desc", "summary"},
			},
			{
				Key:        "applicationType",
				Label:      "Application Type",
				Kind:       core.FieldEnum,
				EnumValues: applicationTypes,
				Aliases:    []string{"type", "app type", "category"},
			},
			{
				Key:        "lifecycleStatus",
				Label:      "Lifecycle Status",
				Kind:       core.FieldEnum,
				EnumValues: lifecycleStatuses,
				Aliases:    []string{"lifecycle", "status", "lifecycle stage", "phase"},
			},
			{
				Key:        "businessCriticality",
				Label:      "Business Criticality",
				Kind:       core.FieldEnum,
				EnumValues: criticalityLevels,
				Aliases:    []string{"criticality", "business impact"},
			},
			{
				Key:        "hostingType",
				Label:      "Hosting Type",
				Kind:       core.FieldEnum,
				EnumValues: hostingTypes,
				Aliases:    []string{"hosting", "deployment", "deployment model"},
			},
			{
				Key:     "annualRunCost",
				Label:   "Annual Run Cost",
				Kind:    core.FieldNumber,
				Aliases: []string{"annual cost", "run cost", "cost", "tco"},
			},
			{
				Key:     "userCount",
				Label:   "User Count",
				Kind:    core.FieldNumber,
				Aliases: []string{"users", "number of users", "user base"},
			},
			{
				Key:       "owner",
				Label:     "Owner",
				Kind:      core.FieldText,
				SafeText:  true,
				MaxLength: 200,
				Aliases:   []string{"business owner", "application owner", "app owner"},
			},
			{
				Key:       "vendor",
				Label:     "Vendor",
				Kind:      core.FieldText,
				SafeText:  true,
				MaxLength: 200,
				Aliases:   []string{"supplier", "provider", "manufacturer"},
			},
		},
	})
}
