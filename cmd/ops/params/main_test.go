package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient keeps parameters in memory.
type mockSSMClient struct {
	params   map[string]string
	getErr   error
	putCalls []*ssm.PutParameterInput
}

func (m *mockSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.params[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func (m *mockSSMClient) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	m.putCalls = append(m.putCalls, params)
	name := aws.ToString(params.Name)
	if _, ok := m.params[name]; ok && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{}
	}
	if m.params == nil {
		m.params = map[string]string{}
	}
	m.params[name] = aws.ToString(params.Value)
	return &ssm.PutParameterOutput{Version: 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestSSMPath(t *testing.T) {
	mgr := NewSSMManager(&mockSSMClient{}, "prod", nil)
	if got := mgr.SSMPath("database/url"); got != "/prod/courtwind/database/url" {
		t.Errorf("SSMPath = %q", got)
	}
}

func TestSeed_FreshEnvironment(t *testing.T) {
	client := &mockSSMClient{}
	mgr := NewSSMManager(client, "dev", quietLogger())
	var out bytes.Buffer

	err := seed(context.Background(), mgr, options{env: "dev"},
		envLookup(map[string]string{"DATABASE_URL": "postgres://db/courtwind"}), &out, quietLogger())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if len(client.putCalls) != 2 {
		t.Fatalf("expected 2 writes (api key, database url), got %d", len(client.putCalls))
	}
	for _, in := range client.putCalls {
		if in.Type != ssmtypes.ParameterTypeSecureString {
			t.Errorf("%s written as %s", aws.ToString(in.Name), in.Type)
		}
	}
	if key := client.params["/dev/courtwind/security/api_key"]; len(key) != 64 {
		t.Errorf("generated api key has length %d, want 64", len(key))
	}
	if got := client.params["/dev/courtwind/database/url"]; got != "postgres://db/courtwind" {
		t.Errorf("database url = %q", got)
	}

	want := "API_KEY_SSM_PARAM=/dev/courtwind/security/api_key\n" +
		"DATABASE_URL_SSM_PARAM=/dev/courtwind/database/url\n"
	if out.String() != want {
		t.Errorf("pointer output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestSeed_ExistingParametersAreKept(t *testing.T) {
	client := &mockSSMClient{params: map[string]string{
		"/prod/courtwind/security/api_key":   "old",
		"/prod/courtwind/inference/api_key": "inf",
	}}
	mgr := NewSSMManager(client, "prod", quietLogger())
	var out bytes.Buffer

	err := seed(context.Background(), mgr, options{env: "prod"},
		envLookup(map[string]string{"API_KEY": "new"}), &out, quietLogger())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(client.putCalls) != 0 {
		t.Errorf("expected no writes, got %d", len(client.putCalls))
	}
	if client.params["/prod/courtwind/security/api_key"] != "old" {
		t.Error("existing api key was replaced without --overwrite")
	}
	if !strings.Contains(out.String(), "INFERENCE_API_KEY_SSM_PARAM=/prod/courtwind/inference/api_key") {
		t.Errorf("missing pointer for existing parameter:\n%s", out.String())
	}
	if strings.Contains(out.String(), "DATABASE_URL") {
		t.Errorf("pointer printed for a parameter that does not exist:\n%s", out.String())
	}
}

func TestSeed_RotateAPIKey(t *testing.T) {
	client := &mockSSMClient{params: map[string]string{"/dev/courtwind/security/api_key": "old"}}
	mgr := NewSSMManager(client, "dev", quietLogger())

	err := seed(context.Background(), mgr, options{env: "dev", rotateAPIKey: true},
		envLookup(nil), io.Discard, quietLogger())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got := client.params["/dev/courtwind/security/api_key"]
	if got == "old" || len(got) != 64 {
		t.Errorf("api key not rotated: %q", got)
	}
	if len(client.putCalls) != 1 || !aws.ToBool(client.putCalls[0].Overwrite) {
		t.Error("rotation must overwrite the existing parameter")
	}
}

func TestSeed_LookupFailure(t *testing.T) {
	client := &mockSSMClient{getErr: errors.New("AccessDenied")}
	err := seed(context.Background(), NewSSMManager(client, "dev", quietLogger()), options{env: "dev"},
		envLookup(nil), io.Discard, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("expected AccessDenied error, got %v", err)
	}
}

func TestPutSecret_RejectsEmpty(t *testing.T) {
	mgr := NewSSMManager(&mockSSMClient{}, "dev", quietLogger())
	if err := mgr.PutSecret(context.Background(), "", "v", false); err == nil {
		t.Error("expected error for empty path")
	}
	if err := mgr.PutSecret(context.Background(), "/dev/courtwind/x", "", false); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateAPIKey()
	if a == b {
		t.Error("two generated keys are equal")
	}
}
