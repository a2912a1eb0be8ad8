package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// MockWaitlistService is a mock implementation of WaitlistService for testing
type MockWaitlistService struct {
	JoinWaitlistFunc      func(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error)
	LeaveWaitlistFunc     func(ctx context.Context, entryID, userID string) error
	PromoteEntryFunc      func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error)
	ExpireStaleEntriesFunc func(ctx context.Context, limit int) (int, error)
}

func (m *MockWaitlistService) JoinWaitlist(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error) {
	if m.JoinWaitlistFunc != nil {
		return m.JoinWaitlistFunc(ctx, userID, req)
	}
	return nil, nil
}

func (m *MockWaitlistService) LeaveWaitlist(ctx context.Context, entryID, userID string) error {
	if m.LeaveWaitlistFunc != nil {
		return m.LeaveWaitlistFunc(ctx, entryID, userID)
	}
	return nil
}

func (m *MockWaitlistService) PromoteEntry(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
	if m.PromoteEntryFunc != nil {
		return m.PromoteEntryFunc(ctx, entryID, actingUserID)
	}
	return nil, nil
}

func (m *MockWaitlistService) ExpireStaleEntries(ctx context.Context, limit int) (int, error) {
	if m.ExpireStaleEntriesFunc != nil {
		return m.ExpireStaleEntriesFunc(ctx, limit)
	}
	return 0, nil
}

func setupWaitlistRouter(handler *WaitlistHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyUserID, userID)
			c.Next()
		})
	}

	waitlist := router.Group("/waitlist")
	{
		waitlist.POST("", handler.JoinWaitlist)
		waitlist.DELETE("/:id", handler.LeaveWaitlist)
		waitlist.POST("/:id/promote", handler.PromoteEntry)
	}

	return router
}

func validJoinRequest() *dto.JoinWaitlistRequest {
	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	return &dto.JoinWaitlistRequest{
		BranchID:  "branch-1",
		CourtID:   "court-1",
		ServiceID: "svc-tennis",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
}

func TestWaitlistHandler_JoinWaitlist(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		request        *dto.JoinWaitlistRequest
		mockFunc       func(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful join",
			userID:  "user-123",
			request: validJoinRequest(),
			mockFunc: func(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error) {
				return &dto.WaitlistResponse{
					ID:     "entry-123",
					UserID: userID,
					Status: string(domain.WaitlistStatusActive),
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unauthorized",
			userID:         "",
			request:        validJoinRequest(),
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "missing court rejected by binding",
			userID:         "user-123",
			request:        &dto.JoinWaitlistRequest{BranchID: "branch-1"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:    "inverted window",
			userID:  "user-123",
			request: validJoinRequest(),
			mockFunc: func(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error) {
				return nil, domain.ErrInvalidTimeRange
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWaitlistHandler(&MockWaitlistService{JoinWaitlistFunc: tt.mockFunc})
			router := setupWaitlistRouter(handler, tt.userID)

			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/waitlist", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedCode != "" {
				var response dto.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &response); err == nil {
					if response.Code != tt.expectedCode {
						t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
					}
				}
			}
		})
	}
}

func TestWaitlistHandler_LeaveWaitlist(t *testing.T) {
	tests := []struct {
		name           string
		entryID        string
		mockFunc       func(ctx context.Context, entryID, userID string) error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "successful leave",
			entryID:        "entry-123",
			expectedStatus: http.StatusOK,
		},
		{
			name:    "not found",
			entryID: "entry-missing",
			mockFunc: func(ctx context.Context, entryID, userID string) error {
				return domain.ErrWaitlistNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWaitlistHandler(&MockWaitlistService{LeaveWaitlistFunc: tt.mockFunc})
			router := setupWaitlistRouter(handler, "user-123")

			req := httptest.NewRequest(http.MethodDelete, "/waitlist/"+tt.entryID, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedCode != "" {
				var response dto.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &response); err == nil {
					if response.Code != tt.expectedCode {
						t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
					}
				}
			}
		})
	}
}

func TestWaitlistHandler_PromoteEntry(t *testing.T) {
	tests := []struct {
		name           string
		entryID        string
		mockFunc       func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful promotion",
			entryID: "entry-123",
			mockFunc: func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
				return &dto.BookingResponse{ID: "booking-123", Status: string(domain.BookingStatusPending)}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:    "slot still taken",
			entryID: "entry-123",
			mockFunc: func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
				return nil, domain.ErrSlotUnavailable
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "SLOT_UNAVAILABLE",
		},
		{
			name:    "already promoted",
			entryID: "entry-123",
			mockFunc: func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
				return nil, domain.ErrAlreadyPromoted
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "ALREADY_PROMOTED",
		},
		{
			name:    "entry lapsed",
			entryID: "entry-123",
			mockFunc: func(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
				return nil, domain.ErrWaitlistExpired
			},
			expectedStatus: http.StatusGone,
			expectedCode:   "WAITLIST_EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWaitlistHandler(&MockWaitlistService{PromoteEntryFunc: tt.mockFunc})
			router := setupWaitlistRouter(handler, "admin-1")

			req := httptest.NewRequest(http.MethodPost, "/waitlist/"+tt.entryID+"/promote", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedCode != "" {
				var response dto.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &response); err == nil {
					if response.Code != tt.expectedCode {
						t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
					}
				}
			}
		})
	}
}
