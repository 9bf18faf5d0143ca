package itest

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type profileView struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type contractView struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	TotalCents int64   `json:"totalCents"`
	DeliveryID *string `json:"deliveryId"`
	Luggage    []struct {
		TagNumber string `json:"tagNumber"`
	} `json:"luggage"`
}

func provision(t *testing.T, srv *testServer, subject, role, name string) profileView {
	t.Helper()
	status, body, _ := srv.doJSON(t, http.MethodPost, "/v1/profiles/me", subject, map[string]any{
		"role":     role,
		"fullName": name,
		"email":    strings.ToLower(strings.Fields(name)[0]) + "-" + uuid.NewString() + "@itest.example",
	})
	if status != http.StatusCreated {
		t.Fatalf("provision %s: status=%d want=%d body=%s", role, status, http.StatusCreated, string(body))
	}
	p := mustUnmarshal[struct {
		Data profileView `json:"data"`
	}](t, body).Data
	if p.Status != "pending" {
		t.Fatalf("provisioned status=%q want pending", p.Status)
	}
	var verified profileView
	srv.mustAction(t, srv.adminSubject, "verifyUser", map[string]any{"userId": p.ID, "verified": true}, &verified)
	if verified.Status != "active" {
		t.Fatalf("verified status=%q want active", verified.Status)
	}
	return verified
}

func TestLuggageDelivery_ITest(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			// Missing auth header => 401
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/v1/profiles/me", "", nil)
				requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
				got := mustUnmarshal[errorResponse](t, body)
				if got.Error.RequestId == "" {
					t.Fatalf("expected requestId in error body=%s", string(body))
				}
			}

			contractorSub := "itest|contractor-" + uuid.NewString()
			driverSub := "itest|driver-" + uuid.NewString()

			// Actions require a provisioned profile.
			{
				status, body := srv.action(t, contractorSub, "getContracts", nil)
				requireErrorCode(t, status, body, http.StatusNotFound, "PROFILE_NOT_PROVISIONED")
			}

			provision(t, srv, contractorSub, "contractor", "Carla Contractor")
			driver := provision(t, srv, driverSub, "delivery", "Dev Driver")

			var region struct {
				ID string `json:"id"`
			}
			srv.mustAction(t, srv.adminSubject, "upsertPricing", map[string]any{
				"name":         "Itest " + uuid.NewString(),
				"baseFeeCents": 2000,
				"perBagCents":  500,
				"perKgCents":   25,
				"currency":     "EUR",
			}, &region)

			booking := map[string]any{
				"regionId":       region.ID,
				"airline":        "Itest Air",
				"flightNumber":   "IT 42",
				"passengerName":  "Paula Passenger",
				"pickupAddress":  "Terminal 1",
				"dropoffAddress": "Hotel Central",
				"scheduledAt":    srv.clk.Now().Add(6 * time.Hour).Format(time.RFC3339),
				"luggage": []map[string]any{
					{"tagNumber": "it000001", "description": "Suitcase", "weightKg": 20.2, "quantity": 2},
				},
			}
			key := uuid.NewString()

			var contract contractView
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/v1/contracts", contractorSub, booking, "Idempotency-Key", key)
				if status != http.StatusCreated {
					t.Fatalf("book: status=%d want=%d body=%s", status, http.StatusCreated, string(body))
				}
				contract = mustUnmarshal[struct {
					Data contractView `json:"data"`
				}](t, body).Data
				// 2000 + 2*500 + ceil(40.4)*25
				if contract.TotalCents != 2000+1000+41*25 {
					t.Fatalf("totalCents=%d", contract.TotalCents)
				}
				if len(contract.Luggage) != 1 || contract.Luggage[0].TagNumber != "IT000001" {
					t.Fatalf("luggage=%+v", contract.Luggage)
				}
			}

			// Replay returns the same contract.
			{
				status, body, hdr := srv.doJSON(t, http.MethodPost, "/v1/contracts", contractorSub, booking, "Idempotency-Key", key)
				if status != http.StatusCreated {
					t.Fatalf("replay: status=%d body=%s", status, string(body))
				}
				requireHeaderPresent(t, hdr, "Idempotent-Replayed")
				replayed := mustUnmarshal[struct {
					Data contractView `json:"data"`
				}](t, body).Data
				if replayed.ID != contract.ID {
					t.Fatalf("replay id=%s want %s", replayed.ID, contract.ID)
				}
			}

			// Same key, different payload.
			{
				booking["notes"] = "fragile"
				status, body, _ := srv.doJSON(t, http.MethodPost, "/v1/contracts", contractorSub, booking, "Idempotency-Key", key)
				requireErrorCode(t, status, body, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")
			}

			// Delivery flow.
			srv.mustAction(t, driverSub, "assignContract", map[string]any{"contractId": contract.ID}, &contract)
			if contract.DeliveryID == nil || *contract.DeliveryID != driver.ID {
				t.Fatalf("deliveryId=%v want %s", contract.DeliveryID, driver.ID)
			}
			{
				status, body := srv.action(t, driverSub, "updateContractStatus", map[string]any{"contractId": contract.ID, "status": "cancelled"})
				requireErrorCode(t, status, body, http.StatusForbidden, "FORBIDDEN")
			}
			srv.mustAction(t, driverSub, "updateContractStatus", map[string]any{"contractId": contract.ID, "status": "picked_up"}, nil)
			for _, pt := range [][2]float64{{52.52, 13.405}, {52.53, 13.41}} {
				srv.clk.Advance(30 * time.Second)
				srv.mustAction(t, driverSub, "updateLocation", map[string]any{"contractId": contract.ID, "lat": pt[0], "lng": pt[1]}, nil)
			}
			srv.mustAction(t, driverSub, "updateContractStatus", map[string]any{"contractId": contract.ID, "status": "in_transit"}, nil)
			srv.mustAction(t, driverSub, "updateContractStatus", map[string]any{"contractId": contract.ID, "status": "delivered"}, &contract)
			if contract.Status != "delivered" {
				t.Fatalf("status=%q want delivered", contract.Status)
			}
			{
				status, body := srv.action(t, driverSub, "updateLocation", map[string]any{"contractId": contract.ID, "lat": 52.5, "lng": 13.4})
				requireErrorCode(t, status, body, http.StatusConflict, "CONFLICT")
			}

			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/v1/contracts/"+contract.ID+"/track", contractorSub, nil)
				if status != http.StatusOK {
					t.Fatalf("track: status=%d body=%s", status, string(body))
				}
				tr := mustUnmarshal[struct {
					Data struct {
						Points   []any  `json:"points"`
						Polyline string `json:"polyline"`
					} `json:"data"`
				}](t, body).Data
				if len(tr.Points) != 2 || tr.Polyline == "" {
					t.Fatalf("track=%+v", tr)
				}
			}

			// Payment and receipt.
			srv.mustAction(t, srv.adminSubject, "recordPayment", map[string]any{
				"contractId": contract.ID, "amountCents": contract.TotalCents, "method": "bank_transfer",
			}, nil)
			{
				status, body, hdr := srv.doJSON(t, http.MethodGet, "/v1/contracts/"+contract.ID+"/invoice.pdf", contractorSub, nil)
				if status != http.StatusOK {
					t.Fatalf("invoice: status=%d body=%s", status, string(body))
				}
				if !bytes.HasPrefix(body, []byte("%PDF-")) {
					t.Fatalf("expected a PDF body")
				}
				if !strings.Contains(hdr.Get("Content-Disposition"), "receipt-") {
					t.Fatalf("Content-Disposition=%q want a receipt", hdr.Get("Content-Disposition"))
				}
			}

			// Support chat.
			srv.mustAction(t, contractorSub, "sendMessage", map[string]any{"body": "Thanks for the quick delivery", "clientRef": "c-1"}, nil)
			var unread struct {
				Count int `json:"count"`
			}
			srv.mustAction(t, srv.adminSubject, "getUnreadCount", map[string]any{}, &unread)
			if unread.Count < 1 {
				t.Fatalf("admin unread=%d want >= 1", unread.Count)
			}
		})
	}
}
