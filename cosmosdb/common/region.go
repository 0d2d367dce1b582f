//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package common provides common utilities used for the Cosmos DB client.
package common

import (
	"fmt"
	"strings"
)

// Region type for Azure regions, in the normalized lower-case form used in
// regional endpoint names, such as "westus2".
type Region string

const (
	RegionEastUS             Region = "eastus"
	RegionEastUS2            Region = "eastus2"
	RegionCentralUS          Region = "centralus"
	RegionNorthCentralUS     Region = "northcentralus"
	RegionSouthCentralUS     Region = "southcentralus"
	RegionWestCentralUS      Region = "westcentralus"
	RegionWestUS             Region = "westus"
	RegionWestUS2            Region = "westus2"
	RegionWestUS3            Region = "westus3"
	RegionCanadaCentral      Region = "canadacentral"
	RegionCanadaEast         Region = "canadaeast"
	RegionBrazilSouth        Region = "brazilsouth"
	RegionNorthEurope        Region = "northeurope"
	RegionWestEurope         Region = "westeurope"
	RegionUKSouth            Region = "uksouth"
	RegionUKWest             Region = "ukwest"
	RegionFranceCentral      Region = "francecentral"
	RegionGermanyWestCentral Region = "germanywestcentral"
	RegionNorwayEast         Region = "norwayeast"
	RegionSwedenCentral      Region = "swedencentral"
	RegionSwitzerlandNorth   Region = "switzerlandnorth"
	RegionPolandCentral      Region = "polandcentral"
	RegionItalyNorth         Region = "italynorth"
	RegionSpainCentral       Region = "spaincentral"
	RegionUAENorth           Region = "uaenorth"
	RegionQatarCentral       Region = "qatarcentral"
	RegionIsraelCentral      Region = "israelcentral"
	RegionSouthAfricaNorth   Region = "southafricanorth"
	RegionCentralIndia       Region = "centralindia"
	RegionSouthIndia         Region = "southindia"
	RegionWestIndia          Region = "westindia"
	RegionEastAsia           Region = "eastasia"
	RegionSoutheastAsia      Region = "southeastasia"
	RegionJapanEast          Region = "japaneast"
	RegionJapanWest          Region = "japanwest"
	RegionKoreaCentral       Region = "koreacentral"
	RegionKoreaSouth         Region = "koreasouth"
	RegionAustraliaEast      Region = "australiaeast"
	RegionAustraliaSoutheast Region = "australiasoutheast"
	RegionAustraliaCentral   Region = "australiacentral"
	RegionMexicoCentral      Region = "mexicocentral"
)

// regionName maps a normalized region to its display name.
var regionName = map[Region]string{
	RegionEastUS:             "East US",
	RegionEastUS2:            "East US 2",
	RegionCentralUS:          "Central US",
	RegionNorthCentralUS:     "North Central US",
	RegionSouthCentralUS:     "South Central US",
	RegionWestCentralUS:      "West Central US",
	RegionWestUS:             "West US",
	RegionWestUS2:            "West US 2",
	RegionWestUS3:            "West US 3",
	RegionCanadaCentral:      "Canada Central",
	RegionCanadaEast:         "Canada East",
	RegionBrazilSouth:        "Brazil South",
	RegionNorthEurope:        "North Europe",
	RegionWestEurope:         "West Europe",
	RegionUKSouth:            "UK South",
	RegionUKWest:             "UK West",
	RegionFranceCentral:      "France Central",
	RegionGermanyWestCentral: "Germany West Central",
	RegionNorwayEast:         "Norway East",
	RegionSwedenCentral:      "Sweden Central",
	RegionSwitzerlandNorth:   "Switzerland North",
	RegionPolandCentral:      "Poland Central",
	RegionItalyNorth:         "Italy North",
	RegionSpainCentral:       "Spain Central",
	RegionUAENorth:           "UAE North",
	RegionQatarCentral:       "Qatar Central",
	RegionIsraelCentral:      "Israel Central",
	RegionSouthAfricaNorth:   "South Africa North",
	RegionCentralIndia:       "Central India",
	RegionSouthIndia:         "South India",
	RegionWestIndia:          "West India",
	RegionEastAsia:           "East Asia",
	RegionSoutheastAsia:      "Southeast Asia",
	RegionJapanEast:          "Japan East",
	RegionJapanWest:          "Japan West",
	RegionKoreaCentral:       "Korea Central",
	RegionKoreaSouth:         "Korea South",
	RegionAustraliaEast:      "Australia East",
	RegionAustraliaSoutheast: "Australia Southeast",
	RegionAustraliaCentral:   "Australia Central",
	RegionMexicoCentral:      "Mexico Central",
}

// accountDomain is the DNS suffix of Cosmos DB account endpoints in the public cloud.
const accountDomain = ".documents.azure.com"

// DisplayName returns the name the service reports for the region, such as
// "West US 2". Unknown regions return their normalized form.
func (region Region) DisplayName() string {
	if name, ok := regionName[region]; ok {
		return name
	}
	return string(region)
}

// Endpoint returns the regional host name of the account whose global
// endpoint host is accountHost, for example
//
//	myacct.documents.azure.com -> myacct-westus2.documents.azure.com
//
// An error is returned if accountHost is not a public cloud account host.
func (region Region) Endpoint(accountHost string) (string, error) {
	host := strings.ToLower(accountHost)
	if !strings.HasSuffix(host, accountDomain) {
		return "", fmt.Errorf("host %s is not a Cosmos DB account endpoint", accountHost)
	}

	account := strings.TrimSuffix(host, accountDomain)
	if account == "" || strings.Contains(account, ".") {
		return "", fmt.Errorf("host %s is not a Cosmos DB account endpoint", accountHost)
	}

	return account + "-" + string(region) + accountDomain, nil
}

// normalize lower-cases s and removes spaces, dashes and underscores.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeRegion returns the normalized form of a region name without
// checking that the region is known.
func NormalizeRegion(name string) Region {
	return Region(normalize(name))
}

// StringToRegion converts a region display name, such as "West US 2", or a
// normalized name, such as "westus2", to Region type.
func StringToRegion(name string) (r Region, err error) {
	r = Region(normalize(name))
	if _, ok := regionName[r]; ok {
		return r, nil
	}

	return "", fmt.Errorf("region named %s is not recognized", name)
}
