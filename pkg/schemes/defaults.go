package schemes

// Defaults returns the controlled-vocabulary values seeded into a freshly
// provisioned tenant. Tenants extend these through Replace afterwards.
func Defaults() map[string][]Value {
	return map[string][]Value{
		"groupType": {
			{Key: "organisation", Label: "Organisation"},
		},
		"workType": {
			{Key: "article", Label: "Article"},
		},
		"contributorRole": {
			{Key: "author", Label: "Author"},
		},
		"identifierType": {
			{Key: "isbn", Label: "ISBN"},
			{Key: "issn", Label: "ISSN"},
			{Key: "essn", Label: "ESSN (ISSN Electronic)"},
			{Key: "doi", Label: "DOI"},
			{Key: "url", Label: "URL"},
			{Key: "handle", Label: "Handle URL"},
			{Key: "scopus", Label: "Scopus"},
			{Key: "wos", Label: "Web of Science"},
		},
		"descriptionType": {
			{Key: "abstract", Label: "Abstract"},
			{Key: "keywords", Label: "Keywords"},
			{Key: "toc", Label: "Table of Contents"},
		},
		"descriptionFormat": {
			{Key: "text", Label: "Plain Text"},
			{Key: "markdown", Label: "Markdown Text"},
			{Key: "html", Label: "HTML"},
		},
		"measureType": {
			{Key: "cites", Label: "Citations"},
			{Key: "openAccess", Label: "Open Access"},
			{Key: "impactFactor", Label: "Impact Factor"},
		},
		"positionType": {
			{Key: "academic", Label: "Academic Side Position"},
			{Key: "commercial", Label: "Commercial Side Position"},
			{Key: "government", Label: "Governmental Side Position"},
			{Key: "charitative", Label: "Charitative Side Position"},
			{Key: "honorary", Label: "Honorary Side Position"},
		},
		"personAccountType": {
			{Key: "email", Label: "email"},
			{Key: "local", Label: "Local"},
			{Key: "wikipedia", Label: "Wikipedia"},
		},
		"groupAccountType": {
			{Key: "email", Label: "email"},
			{Key: "local", Label: "Local"},
			{Key: "wikipedia", Label: "Wikipedia"},
		},
		"relationType": {
			{Key: "isPartOf", Label: "is part of"},
			{Key: "references", Label: "references"},
			{Key: "isFormatOf", Label: "is format of"},
			{Key: "isVersionOf", Label: "is version of"},
			{Key: "isReplacedBy", Label: "is replaced by"},
		},
	}
}
