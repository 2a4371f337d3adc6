package runtime

import "testing"

func TestClaimEngineEndpointTwicePanics(t *testing.T) {
	b := NewBridge(DefaultConfig())
	b.ClaimEngineEndpoint()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected second ClaimEngineEndpoint to panic")
		}
	}()
	b.ClaimEngineEndpoint()
}

func TestClaimMainEndpointTwicePanics(t *testing.T) {
	b := NewBridge(DefaultConfig())
	b.ClaimMainEndpoint()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected second ClaimMainEndpoint to panic")
		}
	}()
	b.ClaimMainEndpoint()
}

func TestClaimBothEndpointsIndependently(t *testing.T) {
	b := NewBridge(DefaultConfig())
	engine := b.ClaimEngineEndpoint()
	main := b.ClaimMainEndpoint()

	if engine.GpuCommand != main.GpuCommand {
		t.Fatalf("expected engine and main endpoints to share the same gpu_command queue")
	}
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.InputRingCapacity != 1024 || cfg.InputControlCapacity != 256 ||
		cfg.GpuCommandCapacity != 1024 || cfg.GpuFeedbackCapacity != 256 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}
