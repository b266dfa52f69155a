package catalog

import "encoding/xml"

// thredds mirrors the subset of the THREDDS InvCatalog XML schema the
// loader needs: nested datasets, per-catalogue services, and the access
// elements tying a dataset to a service. Unknown elements and attributes
// are ignored by encoding/xml.

type threddsCatalog struct {
	XMLName  xml.Name         `xml:"catalog"`
	Services []threddsService `xml:"service"`
	Datasets []threddsDataset `xml:"dataset"`
}

type threddsService struct {
	Name        string           `xml:"name,attr"`
	ServiceType string           `xml:"serviceType,attr"`
	Base        string           `xml:"base,attr"`
	Services    []threddsService `xml:"service"`
}

type threddsDataset struct {
	Name     string           `xml:"name,attr"`
	ID       string           `xml:"ID,attr"`
	URLPath  string           `xml:"urlPath,attr"`
	Dates    []threddsDate    `xml:"date"`
	Sizes    []threddsSize    `xml:"dataSize"`
	Access   []threddsAccess  `xml:"access"`
	Datasets []threddsDataset `xml:"dataset"`
}

type threddsDate struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type threddsSize struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

type threddsAccess struct {
	ServiceName string `xml:"serviceName,attr"`
	URLPath     string `xml:"urlPath,attr"`
}

// httpFileServerType is the THREDDS serviceType value that marks a
// service as the plain-HTTP file download endpoint, per spec.md §4.1
// ("access endpoint of HTTP-file-server type").
const httpFileServerType = "HTTPServer"
