package cryptoutils

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	tdx_client "github.com/google/go-tdx-guest/client"
	"github.com/ruteri/enclave-prover/interfaces"
	"github.com/ruteri/enclave-prover/nsm"
)

// ProviderFor returns the provider for the configured attestation type.
// nsmDevice is only used by the nitro provider; empty selects the default
// device path.
func ProviderFor(t interfaces.AttestationType, nsmDevice string) (interfaces.AttestationProvider, error) {
	switch t {
	case interfaces.NitroAttestation, "":
		return NewNitroProvider(nsm.NewIoctlDevice(nsmDevice)), nil
	case interfaces.TDXAttestation:
		return TDXProvider{}, nil
	case interfaces.DummyAttestation:
		return DummyProvider{}, nil
	case interfaces.NoAttestation:
		return NoneProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported attestation type %q: %w", t, errors.ErrUnsupported)
	}
}

// NitroProvider requests attestation documents from the Nitro Security Module.
type NitroProvider struct {
	client *nsm.Client
}

func NewNitroProvider(dev nsm.Device) *NitroProvider {
	return &NitroProvider{client: nsm.NewClient(dev)}
}

func (*NitroProvider) AttestationType() interfaces.AttestationType {
	return interfaces.NitroAttestation
}

func (p *NitroProvider) Attest(userData, nonce []byte) ([]byte, error) {
	doc, err := p.client.Attestation(userData, nonce)
	if errors.Is(err, nsm.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrAttestationUnavailable, err)
	}
	return doc, err
}

// TDXProvider returns raw TDX quotes. userData fills the first half of the
// report data and nonce the second half.
type TDXProvider struct{}

func (TDXProvider) AttestationType() interfaces.AttestationType {
	return interfaces.TDXAttestation
}

func (TDXProvider) Attest(userData, nonce []byte) ([]byte, error) {
	reportData, err := tdxReportData(userData, nonce)
	if err != nil {
		return nil, err
	}

	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrAttestationUnavailable, err)
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

func tdxReportData(userData, nonce []byte) ([64]byte, error) {
	var reportData [64]byte
	if len(userData) > 32 || len(nonce) > 32 {
		return reportData, fmt.Errorf("tdx report data holds at most 32 bytes of user data and 32 bytes of nonce, got %d and %d", len(userData), len(nonce))
	}
	copy(reportData[:32], userData)
	copy(reportData[32:], nonce)
	return reportData, nil
}

// DummyProvider returns an unsigned placeholder document. Development only.
type DummyProvider struct{}

func (DummyProvider) AttestationType() interfaces.AttestationType {
	return interfaces.DummyAttestation
}

func (DummyProvider) Attest(userData, nonce []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("Dummy attestation for user data %x nonce %x", userData, nonce)), nil
}

// NoneProvider never produces a document.
type NoneProvider struct{}

func (NoneProvider) AttestationType() interfaces.AttestationType {
	return interfaces.NoAttestation
}

func (NoneProvider) Attest([]byte, []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: attestation disabled", interfaces.ErrAttestationUnavailable)
}

// Attester applies the non-fatal document policy on top of a provider.
type Attester struct {
	provider interfaces.AttestationProvider
	log      *slog.Logger
}

func NewAttester(provider interfaces.AttestationProvider, log *slog.Logger) *Attester {
	return &Attester{provider: provider, log: log}
}

// Document returns the attestation document for userData and nonce, or nil
// if none could be obtained. It never panics.
func (a *Attester) Document(userData, nonce []byte) (doc []byte) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Attestation provider panicked",
				"attestationType", a.provider.AttestationType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			doc = nil
		}
	}()

	doc, err := a.provider.Attest(userData, nonce)
	if errors.Is(err, interfaces.ErrAttestationUnavailable) {
		a.log.Info("Attestation device not available, continuing without document",
			"attestationType", a.provider.AttestationType())
		return nil
	}
	if err != nil {
		a.log.Error("Attestation request failed",
			"attestationType", a.provider.AttestationType(),
			"err", err)
		return nil
	}
	if len(doc) == 0 {
		a.log.Warn("Attestation provider returned an empty document",
			"attestationType", a.provider.AttestationType())
		return nil
	}

	a.log.Debug("Attestation document obtained",
		"attestationType", a.provider.AttestationType(),
		"size", len(doc))
	return doc
}
