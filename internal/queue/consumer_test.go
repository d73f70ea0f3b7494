package queue

import (
    "bytes"
    "context"
    "encoding/json"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/ecotour-booking/internal/logger"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
    return m.Called(ctx, ev).Error(0)
}

func (m *mockNotifier) TicketsIssued(ctx context.Context, ev TicketsIssuedEvent) error {
    return m.Called(ctx, ev).Error(0)
}

func (m *mockNotifier) BookingCancelled(ctx context.Context, ev BookingCancelledEvent) error {
    return m.Called(ctx, ev).Error(0)
}

func TestConsumer_Handle_DispatchesByQueue(t *testing.T) {
    n := new(mockNotifier)
    c := NewConsumer("amqp://unused", n, logger.Nop())
    ctx := context.Background()

    issued := TicketsIssuedEvent{BookingID: 1, OrderNumber: "ECO-1", TicketCodes: []string{"TKT-A", "TKT-B"}}
    n.On("TicketsIssued", ctx, mock.MatchedBy(func(ev TicketsIssuedEvent) bool {
        return ev.OrderNumber == "ECO-1" && len(ev.TicketCodes) == 2
    })).Return(nil).Once()
    body, err := json.Marshal(issued)
    require.NoError(t, err)
    require.NoError(t, c.Handle(ctx, QueueTicketsIssued, body))

    n.On("BookingCancelled", ctx, mock.MatchedBy(func(ev BookingCancelledEvent) bool {
        return ev.OrderNumber == "ECO-2" && ev.TicketsCancelled == 2
    })).Return(nil).Once()
    body, err = json.Marshal(BookingCancelledEvent{OrderNumber: "ECO-2", TicketsCancelled: 2})
    require.NoError(t, err)
    require.NoError(t, c.Handle(ctx, QueueBookingCancelled, body))

    n.On("BookingConfirmed", ctx, mock.MatchedBy(func(ev BookingConfirmedEvent) bool {
        return ev.OrderNumber == "ECO-3" && ev.TotalAmount == 102500 && ev.Channel == "cash"
    })).Return(nil).Once()
    body, err = json.Marshal(BookingConfirmedEvent{OrderNumber: "ECO-3", TotalAmount: 102500, Channel: "cash"})
    require.NoError(t, err)
    require.NoError(t, c.Handle(ctx, QueueBookingConfirmed, body))

    n.AssertExpectations(t)
}

func TestConsumer_Handle_Rejects(t *testing.T) {
    n := new(mockNotifier)
    c := NewConsumer("amqp://unused", n, logger.Nop())

    assert.Error(t, c.Handle(context.Background(), QueueTicketsIssued, []byte("{not json")))
    assert.Error(t, c.Handle(context.Background(), QueueBookingConfirmed, []byte("[]")))
    assert.Error(t, c.Handle(context.Background(), "unknown.queue", []byte("{}")))
    n.AssertNotCalled(t, "TicketsIssued", mock.Anything, mock.Anything)
    n.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything)
}

func TestLogNotifier_WritesStructuredLine(t *testing.T) {
    var buf bytes.Buffer
    n := NewLogNotifier(logger.NewWriter(&buf))

    require.NoError(t, n.TicketsIssued(context.Background(), TicketsIssuedEvent{
        OrderNumber: "ECO-9", LeaderEmail: "lead@example.com", TicketCodes: []string{"TKT-1", "TKT-2"},
    }))

    var line map[string]interface{}
    require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
    assert.Equal(t, "tickets_issued", line["notification"])
    assert.Equal(t, "lead@example.com", line["to"])
    assert.Equal(t, "TKT-1,TKT-2", line["tickets"])
    assert.EqualValues(t, 2, line["ticket_count"])
}

func TestLogNotifier_BookingConfirmed(t *testing.T) {
    var buf bytes.Buffer
    n := NewLogNotifier(logger.NewWriter(&buf))
    user := uint64(11)

    require.NoError(t, n.BookingConfirmed(context.Background(), BookingConfirmedEvent{
        BookingID: 9, OrderNumber: "ECO-7", UserID: &user, VisitDate: "2026-10-16",
        TotalVisitors: 2, TotalAmount: 102500, Status: "paid", Channel: "bank_transfer",
        ConfirmedAt: time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC),
    }))

    var line map[string]interface{}
    require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
    assert.Equal(t, "booking_event", line["type"])
    assert.Equal(t, "confirmed", line["event"])
    assert.Equal(t, "ECO-7", line["order_number"])
    assert.EqualValues(t, 102500, line["total"])
    assert.EqualValues(t, 11, line["user_id"])
}

func TestFileNotifier_SplitsBookingLog(t *testing.T) {
    dir := t.TempDir()
    notifyPath := filepath.Join(dir, "notify", "notifications.log")
    bookingPath := filepath.Join(dir, "booking", "booking.log")
    n, err := NewFileNotifier(notifyPath, bookingPath)
    require.NoError(t, err)

    require.NoError(t, n.BookingConfirmed(context.Background(), BookingConfirmedEvent{OrderNumber: "ECO-8", Status: "paid"}))
    require.NoError(t, n.BookingCancelled(context.Background(), BookingCancelledEvent{OrderNumber: "ECO-8"}))

    booking, err := os.ReadFile(bookingPath)
    require.NoError(t, err)
    assert.Contains(t, string(booking), "order_number=ECO-8")
    assert.Contains(t, string(booking), "event=confirmed")
    assert.NotContains(t, string(booking), "booking_cancelled")

    notify, err := os.ReadFile(notifyPath)
    require.NoError(t, err)
    assert.Contains(t, string(notify), `"notification":"booking_cancelled"`)
    assert.NotContains(t, string(notify), "confirmed")
}

func TestConsumer_Run_StopsOnCancelledContext(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    c := NewConsumer("amqp://127.0.0.1:1/", new(mockNotifier), logger.Nop())
    assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}
