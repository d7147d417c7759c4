package remediation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DrSkyle/tagguard/pkg/resource"
)

// Manifest is a reviewable record of planned mutations, written on dry runs.
type Manifest struct {
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
	Account     string       `json:"account"`
	Actions     []PlanAction `json:"actions"`
}

// PlanAction is one mutation in manifest form.
type PlanAction struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Operation   Action `json:"operation"`
	Key         string `json:"key"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description"`
}

// NewManifest builds a manifest from ms, preserving order.
func NewManifest(account string, generatedAt time.Time, ms []Mutation) Manifest {
	plan := Manifest{
		Version:     "1.0",
		GeneratedAt: generatedAt,
		Account:     account,
		Actions:     make([]PlanAction, 0, len(ms)),
	}
	for _, m := range ms {
		plan.Actions = append(plan.Actions, PlanAction{
			ID:          m.Resource.ID,
			Type:        m.Resource.Kind.TypeName(),
			Operation:   m.Action,
			Key:         m.Key,
			Value:       m.Value,
			Description: m.String(),
		})
	}
	return plan
}

// WriteJSON serializes the manifest.
func (p Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// WriteScript renders the manifest as an AWS CLI script an operator can run
// after review. Every interpolated value is single-quoted.
func (p Manifest) WriteScript(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\n")
	fmt.Fprintf(&b, "# tagguard remediation plan v%s for %s\n", p.Version, p.Account)
	fmt.Fprintf(&b, "# Generated: %s\n\n", p.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "set -e\n\n")

	for _, a := range p.Actions {
		fmt.Fprintf(&b, "printf \"[Processing] %%s\\n\" %s\n", shellQuote(a.Description))
		cmd, err := cliCommand(a)
		if err != nil {
			return err
		}
		b.WriteString(cmd)
		b.WriteString("\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func cliCommand(a PlanAction) (string, error) {
	id := shellQuote(a.ID)
	key := shellQuote(a.Key)
	tags, err := json.Marshal([]map[string]string{{"Key": a.Key, "Value": a.Value}})
	if err != nil {
		return "", err
	}
	tagList := shellQuote(string(tags))

	set := a.Operation == ActionSet
	switch a.Type {
	case resource.KindInstance.TypeName():
		if set {
			return fmt.Sprintf("aws ec2 create-tags --resources %s --tags %s", id, tagList), nil
		}
		return fmt.Sprintf("aws ec2 delete-tags --resources %s --tags %s", id, shellQuote(fmt.Sprintf(`[{"Key":%q}]`, a.Key))), nil
	case resource.KindDatabase.TypeName(), resource.KindDatabaseCluster.TypeName():
		if set {
			return fmt.Sprintf("aws rds add-tags-to-resource --resource-name %s --tags %s", id, tagList), nil
		}
		return fmt.Sprintf("aws rds remove-tags-from-resource --resource-name %s --tag-keys %s", id, key), nil
	case resource.KindBucket.TypeName():
		// put-bucket-tagging replaces the whole set; the tagging API merges.
		arn := shellQuote("arn:aws:s3:::" + a.ID)
		if set {
			return fmt.Sprintf("aws resourcegroupstaggingapi tag-resources --resource-arn-list %s --tags %s", arn, shellQuote(fmt.Sprintf("{%q:%q}", a.Key, a.Value))), nil
		}
		return fmt.Sprintf("aws resourcegroupstaggingapi untag-resources --resource-arn-list %s --tag-keys %s", arn, key), nil
	case resource.KindFileSystem.TypeName():
		if set {
			return fmt.Sprintf("aws efs tag-resource --resource-id %s --tags %s", id, tagList), nil
		}
		return fmt.Sprintf("aws efs untag-resource --resource-id %s --tag-keys %s", id, key), nil
	}
	return "", fmt.Errorf("no CLI mapping for resource type %s", a.Type)
}

// shellQuote quotes a string for bash.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
