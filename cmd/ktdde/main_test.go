package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktdde/internal/catalog"
	"ktdde/internal/config"
)

func TestMain(m *testing.M) {
	initConfig()
	addPersistentFlags()
	registerCommands()
	os.Exit(m.Run())
}

// run executes the CLI in a fresh workspace and captures stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	require.NoError(t, rootCmd.PersistentFlags().Set("json", "false"))
	require.NoError(t, rootCmd.PersistentFlags().Set("workspace", t.TempDir()))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestActorsTable(t *testing.T) {
	out, err := run(t, "actors")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "carrier")
	assert.Contains(t, out, "certifier")
}

func TestDocsForActorJSON(t *testing.T) {
	out, err := run(t, "docs", "--json", "--actor", "bank")
	require.NoError(t, err)
	var cards []struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cards))
	var keys []string
	for _, c := range cards {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{
		"purchase_order", "documentary_credit", "commercial_invoice", "bill_of_lading",
		"certificate_of_origin", "packing_list", "insurance_certificate",
		"phytosanitary_certificate", "payment_confirmation",
	}, keys)
}

func TestShowUnknownDocument(t *testing.T) {
	_, err := run(t, "show", "dangerous_goods_declaration")
	require.Error(t, err)
	assert.Equal(t, "document dangerous_goods_declaration not found", err.Error())
}

func TestShowText(t *testing.T) {
	out, err := run(t, "show", "packing_list", "--format", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{\n  \"@type\": \"PackingList\""), out)
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "scenario OK")
}

func TestTransformWithoutMapping(t *testing.T) {
	_, err := run(t, "transform", "packing_list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SAP mapping")
}

func TestTransformPlaysAllFrames(t *testing.T) {
	out, err := run(t, "transform", "bill_of_lading", "--interval", "0s", "--issued-at", "2026-02-04T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(out, "== Transforming..."))
	assert.Contains(t, out, "== Verifiable Credential")
}

func TestTransformJSONCarriesFrames(t *testing.T) {
	require.NoError(t, rootCmd.PersistentFlags().Set("workspace", t.TempDir()))
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	require.NoError(t, rootCmd.PersistentFlags().Set("json", "true"))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("json", "false") })

	rootCmd.SetArgs([]string{"transform", "purchase_order", "--interval", "0s", "--issued-at", "2026-02-04T09:30:00Z"})
	require.NoError(t, rootCmd.Execute())
	var exp struct {
		Doc   string `json:"doc"`
		Steps []struct {
			Status string         `json:"status"`
			Frame  map[string]any `json:"frame"`
		} `json:"steps"`
		Credential map[string]any `json:"credential"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &exp))
	assert.Equal(t, "purchase_order", exp.Doc)
	require.Len(t, exp.Steps, 8)
	assert.Equal(t, "PurchaseOrder", exp.Steps[0].Frame["@type"])
	assert.Equal(t, exp.Steps[7].Status, exp.Steps[7].Frame["status"])
	assert.Contains(t, exp.Credential, "@context")
	assert.Contains(t, exp.Credential, "credentialSubject")
	assert.Equal(t, "2026-02-04T09:30:00Z", exp.Credential["issuanceDate"])
}

func TestCredentialToCBORFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "po.cbor")
	_, err := run(t, "credential", "purchase_order", "--cbor", "--out", path, "--issued-at", "2026-02-04T09:30:00Z")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cred map[string]any
	require.NoError(t, cbor.Unmarshal(data, &cred))
	assert.Equal(t, "2026-02-04T09:30:00Z", cred["issuanceDate"])
}

func TestSnapshotAndHistory(t *testing.T) {
	ws := t.TempDir()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	require.NoError(t, rootCmd.PersistentFlags().Set("workspace", ws))
	require.NoError(t, rootCmd.PersistentFlags().Set("json", "true"))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("json", "false") })

	rootCmd.SetArgs([]string{"snapshot"})
	require.NoError(t, rootCmd.Execute())
	var st struct {
		Documents int `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &st))
	assert.Equal(t, 15, st.Documents)
	assert.FileExists(t, filepath.Join(ws, ".ktdde", "ktdde.db"))

	buf.Reset()
	rootCmd.SetArgs([]string{"snapshot", "--history"})
	require.NoError(t, rootCmd.Execute())
	var evts []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &evts))
	assert.Len(t, evts, 1)
}

func TestSnapshotVerify(t *testing.T) {
	ws := t.TempDir()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	require.NoError(t, rootCmd.PersistentFlags().Set("workspace", ws))
	require.NoError(t, rootCmd.PersistentFlags().Set("json", "false"))

	rootCmd.SetArgs([]string{"snapshot", "--history=false", "--verify=false"})
	require.NoError(t, rootCmd.Execute())

	buf.Reset()
	rootCmd.SetArgs([]string{"snapshot", "--history=false", "--verify"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "snapshot matches scenario")

	// Point the workspace at a different scenario; the old snapshot drifts.
	scenario := strings.Replace(string(catalog.Embedded()), `{date: "2025-12-31", event: "Purchase Order Issued"`, `{date: "2025-12-31", event: "Order Placed"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "scenario.yaml"), []byte(scenario), 0o644))
	cfg := strings.Replace(config.GenerateDefault(), "# file: scenario.yaml", "file: scenario.yaml", 1)
	require.NoError(t, os.WriteFile(filepath.Join(ws, config.FileName), []byte(cfg), 0o644))

	buf.Reset()
	rootCmd.SetArgs([]string{"snapshot", "--history=false", "--verify"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot differs from scenario (1 differences)")
	assert.Contains(t, buf.String(), "Order Placed")
}

func TestConfigInitThenScenarioFile(t *testing.T) {
	ws := t.TempDir()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	require.NoError(t, rootCmd.PersistentFlags().Set("json", "false"))
	require.NoError(t, rootCmd.PersistentFlags().Set("workspace", ws))

	rootCmd.SetArgs([]string{"config", "init"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(ws, config.FileName))

	rootCmd.SetArgs([]string{"config", "init"})
	assert.Error(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"scenario", "dump", "--out", "scenario.yaml"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(ws, "scenario.yaml"))

	cfg := strings.Replace(config.GenerateDefault(), "# file: scenario.yaml", "file: scenario.yaml", 1)
	require.NoError(t, os.WriteFile(filepath.Join(ws, config.FileName), []byte(cfg), 0o644))

	buf.Reset()
	rootCmd.SetArgs([]string{"config", "validate"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "config OK")
}

func TestConfigValidateRequiresFile(t *testing.T) {
	validate, _, err := rootCmd.Find([]string{"config", "validate"})
	require.NoError(t, err)
	t.Cleanup(func() { validate.Flags().Set("file", "") })

	_, err = run(t, "config", "validate", "--file=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ktdde config init")

	dir := t.TempDir()
	path := filepath.Join(dir, "other.yml")
	cfg := strings.Replace(config.GenerateDefault(), "# file: scenario.yaml", "file: broken.yaml", 1)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("actors: []\n"), 0o644))
	_, err = run(t, "config", "validate", "--file", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInvalidScenario)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), catalog.Embedded(), 0o644))
	out, err := run(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config OK")
}
