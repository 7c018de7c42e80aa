package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	values  map[string]string
	batches [][]string
	err     error
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
}

func TestSSMProviderBatchesByTen(t *testing.T) {
	values := make(map[string]string)
	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/dev/courtwind/p%02d", i)
		values[keys[i]] = fmt.Sprintf("v%d", i)
	}
	client := &fakeSSMClient{values: values}
	p := newSSMProviderWithClient("eu-central-1", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(got) != 23 {
		t.Errorf("resolved %d values, want 23", len(got))
	}
	if len(client.batches) != 3 {
		t.Fatalf("made %d calls, want 3", len(client.batches))
	}
	if len(client.batches[2]) != 3 {
		t.Errorf("last batch size = %d, want 3", len(client.batches[2]))
	}
}

func TestSSMProviderInvalidParameters(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{}}
	p := newSSMProviderWithClient("eu-central-1", client)

	if _, err := p.GetParametersBatch(context.Background(), []string{"/missing"}); err == nil {
		t.Fatal("expected error for invalid parameter, got nil")
	}
}

func TestSSMProviderClientError(t *testing.T) {
	boom := errors.New("access denied")
	p := newSSMProviderWithClient("eu-central-1", &fakeSSMClient{err: boom})

	_, err := p.GetParametersBatch(context.Background(), []string{"/x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	p := NewSSMProvider("eu-central-1")
	got, err := p.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}
}

func TestSSMProviderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeSSMClient{values: map[string]string{"/x": "1"}}
	p := newSSMProviderWithClient("eu-central-1", client)
	if _, err := p.GetParametersBatch(ctx, []string{"/x"}); err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
	if len(client.batches) != 0 {
		t.Errorf("no calls expected after cancellation, got %d", len(client.batches))
	}
}
