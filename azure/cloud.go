package azure

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
)

const DefaultCloudName = "AzurePublic"

// Cloud couples an SDK cloud configuration with the portal used for deep links.
type Cloud struct {
	Name          string
	Configuration cloud.Configuration
	PortalBaseURL string
}

var clouds = map[string]Cloud{
	"azurepublic": {
		Name:          "AzurePublic",
		Configuration: cloud.AzurePublic,
		PortalBaseURL: "https://portal.azure.com/#",
	},
	"azurechina": {
		Name:          "AzureChina",
		Configuration: cloud.AzureChina,
		PortalBaseURL: "https://portal.azure.cn/#",
	},
	"azuregovernment": {
		Name:          "AzureGovernment",
		Configuration: cloud.AzureGovernment,
		PortalBaseURL: "https://portal.azure.us/#",
	},
}

// LookupCloud resolves a cloud by name, case-insensitively. An empty name
// selects the public cloud.
func LookupCloud(name string) (Cloud, error) {
	if name == "" {
		name = DefaultCloudName
	}
	azureCloud, ok := clouds[strings.ToLower(name)]
	if !ok {
		return Cloud{}, fmt.Errorf("unknown cloud %q, expected one of AzurePublic, AzureChina, AzureGovernment", name)
	}
	return azureCloud, nil
}
