// Package script holds the deception script: every attacker-visible
// response fragment. The texts are part of the trap — fixed, crafted
// strings — and must never carry real error details. Operators can
// override individual fragments from a YAML file.
package script

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is the full set of attacker-facing response fragments.
type Script struct {
	Blocked            string `yaml:"blocked"`
	OTPPrompt          string `yaml:"otp_prompt"`
	SchemaHint         string `yaml:"schema_hint"`
	DumpHeader         string `yaml:"dump_header"`
	DumpFooter         string `yaml:"dump_footer"`
	InvalidCredentials string `yaml:"invalid_credentials"`
	UploadPrompt       string `yaml:"upload_prompt"`
	InvalidCode        string `yaml:"invalid_code"`
	UploadAck          string `yaml:"upload_ack"`
}

// Default returns the built-in script.
func Default() *Script {
	return &Script{
		Blocked: `<h3>Your IP has been temporarily blocked.</h3>`,
		OTPPrompt: `<h3>Two-Factor Authentication</h3>
<form method="POST" action="/otp-verify">
  <input name="code" placeholder="Enter code">
  <button>Verify</button>
</form>`,
		SchemaHint: `<h3>Server Error</h3>
<pre style="color:gray">Information schema suggests table 'users'</pre>`,
		DumpHeader: `<h2>Partial Database Dump</h2>`,
		DumpFooter: `<p style="color:gray">-- Error 1064: packet loss detected</p>`,
		InvalidCredentials: `<h3>Invalid username or password.</h3>`,
		UploadPrompt: `<h3>Verification Successful</h3>
<p>Upload ID</p>
<form method="POST" enctype="multipart/form-data" action="/upload-id">
  <input type="file" name="idfile">
  <button>Upload</button>
</form>`,
		InvalidCode: `<h3>Invalid Code</h3>`,
		UploadAck:   "<h3>ID uploaded. Manual review 24–72 hours.</h3>",
	}
}

// Load reads fragment overrides from a YAML file on top of the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Script, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("failed to parse script file: %w", err)
	}
	return s, nil
}

// RenderDump renders the decoy rows between the dump header and footer,
// imitating a half-broken database export.
func (s *Script) RenderDump(rows []map[string]any) string {
	pretty, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		pretty = []byte("[]")
	}
	return fmt.Sprintf("%s\n<pre>%s</pre>\n%s", s.DumpHeader, pretty, s.DumpFooter)
}
