package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snarg/voxbridge/internal/provider"
)

func TestServices_All(t *testing.T) {
	recCache, sumCache := testCaches(t, true, false)
	startup := &provider.PreloadReport{Total: 2, Successful: 1, Failed: 1, Errors: []string{"summary provider ernie: down"}}
	h := NewServicesHandler(recCache, sumCache, func() *provider.PreloadReport { return startup }, "funasr", "ernie")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	rr := httptest.NewRecorder()
	h.All(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var res AllServicesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.ASRServices) != 1 || res.ASRServices[0] != "funasr" {
		t.Errorf("asr_services = %v, want [funasr]", res.ASRServices)
	}
	if len(res.LLMServices) != 0 {
		t.Errorf("llm_services = %v, want empty while ernie is down", res.LLMServices)
	}
	if res.TotalServices != 1 {
		t.Errorf("total_services = %d, want 1", res.TotalServices)
	}
	if res.StartupInfo == nil || res.StartupInfo.Failed != 1 || len(res.StartupInfo.Errors) != 1 {
		t.Errorf("startup_info = %+v, want the preload report echoed", res.StartupInfo)
	}
}

func TestServices_AllWithoutStartupReport(t *testing.T) {
	recCache, sumCache := testCaches(t, true, true)
	h := NewServicesHandler(recCache, sumCache, nil, "funasr", "ernie")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	rr := httptest.NewRecorder()
	h.All(rr, req)

	var res AllServicesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.StartupInfo != nil {
		t.Errorf("startup_info = %+v, want omitted", res.StartupInfo)
	}
}

func TestServices_AllWhilePreloadStillRunning(t *testing.T) {
	recCache, sumCache := testCaches(t, true, true)
	h := NewServicesHandler(recCache, sumCache, func() *provider.PreloadReport { return nil }, "funasr", "ernie")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	rr := httptest.NewRecorder()
	h.All(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 before preload finishes", rr.Code)
	}
	var res AllServicesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.StartupInfo != nil {
		t.Errorf("startup_info = %+v, want omitted until preload finishes", res.StartupInfo)
	}
}

func TestServices_Recognizers(t *testing.T) {
	recCache, sumCache := testCaches(t, false, true)
	h := NewServicesHandler(recCache, sumCache, nil, "funasr", "ernie")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/asr-services", nil)
	rr := httptest.NewRecorder()
	h.Recognizers(rr, req)

	var res ServiceListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.DefaultService != "funasr" {
		t.Errorf("response = %+v, want success with default funasr", res)
	}
	// Registered regardless of reachability; available only when up.
	if len(res.RegisteredServices) != 1 || res.RegisteredServices[0] != "funasr" {
		t.Errorf("registered_services = %v, want [funasr]", res.RegisteredServices)
	}
	if len(res.AvailableServices) != 0 {
		t.Errorf("available_services = %v, want empty while down", res.AvailableServices)
	}
}

func TestServices_Summarizers(t *testing.T) {
	recCache, sumCache := testCaches(t, true, true)
	h := NewServicesHandler(recCache, sumCache, nil, "funasr", "ernie")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary-services", nil)
	rr := httptest.NewRecorder()
	h.Summarizers(rr, req)

	var res ServiceListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.DefaultService != "ernie" {
		t.Errorf("default_service = %q, want ernie", res.DefaultService)
	}
	if len(res.AvailableServices) != 1 || res.AvailableServices[0] != "ernie" {
		t.Errorf("available_services = %v, want [ernie]", res.AvailableServices)
	}
}
