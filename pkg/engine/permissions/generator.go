package permissions

import (
	"encoding/json"
	"sort"

	"github.com/DrSkyle/tagguard/pkg/resource"
)

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type Statement struct {
	Sid      string   `json:"Sid"`
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource string   `json:"Resource"`
}

// Generate builds the IAM policy for kinds. An empty kinds list means every
// kind. readOnly omits the tag write actions, which is enough for dry runs.
func Generate(kinds []resource.Kind, readOnly bool) PolicyDocument {
	if len(kinds) == 0 {
		kinds = resource.AllKinds
	}

	read := make(map[string]bool)
	write := make(map[string]bool)
	for _, perm := range CorePermissions() {
		read[perm] = true
	}
	for _, k := range kinds {
		access := Catalog[k]
		for _, a := range access.Read {
			read[a] = true
		}
		for _, a := range access.Write {
			write[a] = true
		}
	}

	doc := PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{
			{Sid: "TagGuardRead", Effect: "Allow", Action: sortedKeys(read), Resource: "*"},
		},
	}
	if !readOnly {
		doc.Statement = append(doc.Statement, Statement{
			Sid: "TagGuardRemediate", Effect: "Allow", Action: sortedKeys(write), Resource: "*",
		})
	}
	return doc
}

// GeneratePolicy renders Generate as indented JSON.
func GeneratePolicy(kinds []resource.Kind, readOnly bool) ([]byte, error) {
	return json.MarshalIndent(Generate(kinds, readOnly), "", "  ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
