package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"foodbank-server/models"
)

func TestUpdateBookingUnknownID(t *testing.T) {
	db := openTestDB(t)

	status := models.BookingStatusCancelled
	err := UpdateBooking(db, 9999, BookingUpdate{Status: &status})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdateBookingClearSlot(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	client := newTestClient(t, db, "Ada")
	b := seedBooking(t, db, &client.ID, slot.ID, "2030-06-10", models.BookingStatusApproved)

	require.NoError(t, UpdateBooking(db, b.ID, BookingUpdate{ClearSlot: true}))

	var stored models.Booking
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.Nil(t, stored.SlotID)
}

func TestUpdateBookingNoFieldsIsNoop(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, UpdateBooking(db, 9999, BookingUpdate{}))
}

func TestBookingByTokenLockedFetch(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	client := newTestClient(t, db, "Ada")
	b := seedBooking(t, db, &client.ID, slot.ID, "2030-06-10", models.BookingStatusApproved)

	// The locked fetch degrades on drivers without FOR UPDATE but must
	// still resolve the row.
	err := db.Transaction(func(tx *gorm.DB) error {
		got, err := BookingByToken(tx, b.RescheduleToken, true)
		if err != nil {
			return err
		}
		assert.Equal(t, b.ID, got.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = BookingByToken(db, "missing-token", false)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListBookingsFilterAndOrder(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	ada := newTestClient(t, db, "Ada")
	grace := newTestClient(t, db, "Grace")

	older := seedBooking(t, db, &ada.ID, slot.ID, "2030-06-01", models.BookingStatusApproved)
	newer := seedBooking(t, db, &ada.ID, slot.ID, "2030-06-15", models.BookingStatusSubmitted)
	seedBooking(t, db, &grace.ID, slot.ID, "2030-06-20", models.BookingStatusApproved)

	all, err := ListBookings(db, BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2030-06-20", all[0].Date)

	status := models.BookingStatusSubmitted
	submitted, err := ListBookings(db, BookingFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, newer.ID, submitted[0].ID)

	mine, err := ListBookings(db, BookingFilter{ClientIDs: []uint{ada.ID}})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newer.ID, mine[0].ID)
	assert.Equal(t, older.ID, mine[1].ID)

	date := "2030-06-01"
	onDate, err := ListBookings(db, BookingFilter{Date: &date})
	require.NoError(t, err)
	require.Len(t, onDate, 1)
	assert.Equal(t, older.ID, onDate[0].ID)
}

func TestBookingHistoryPagination(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	client := newTestClient(t, db, "Ada")

	seedBooking(t, db, &client.ID, slot.ID, "2021-03-01", models.BookingStatusVisited)
	seedBooking(t, db, &client.ID, slot.ID, "2021-04-01", models.BookingStatusCancelled)
	seedBooking(t, db, &client.ID, slot.ID, "2021-05-01", models.BookingStatusNoShow)

	page, err := BookingHistory(db, []uint{client.ID}, HistoryOptions{
		IncludePast: true,
		Limit:       2,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2021-05-01", page[0].Date)
	assert.Equal(t, "2021-04-01", page[1].Date)

	page, err = BookingHistory(db, []uint{client.ID}, HistoryOptions{
		IncludePast: true,
		Limit:       2,
		Offset:      2,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2021-03-01", page[0].Date)

	page, err = BookingHistory(db, []uint{client.ID}, HistoryOptions{
		IncludePast: true,
		Offset:      10,
	})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestBookingHistoryStatusFilterCoversSynthetics(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	client := newTestClient(t, db, "Ada")

	submitted := seedBooking(t, db, &client.ID, slot.ID, "2021-05-02", models.BookingStatusSubmitted)
	newVisit(t, db, &client.ID, "2021-05-01", false) // walk-in, no booking row

	// Filtering on a non-visited status must not surface synthetic
	// visited rows from the visits table.
	status := models.BookingStatusSubmitted
	entries, err := BookingHistory(db, []uint{client.ID}, HistoryOptions{
		IncludePast:   true,
		IncludeVisits: true,
		Status:        &status,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, submitted.ID, entries[0].ID)

	// Filtering on visited keeps them.
	status = models.BookingStatusVisited
	entries, err = BookingHistory(db, []uint{client.ID}, HistoryOptions{
		IncludePast:   true,
		IncludeVisits: true,
		Status:        &status,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(0), entries[0].ID)
	assert.Equal(t, "2021-05-01", entries[0].Date)
	assert.Equal(t, models.BookingStatusVisited, entries[0].Status)
}

func TestBookingHistoryExcludesPastByDefault(t *testing.T) {
	db := openTestDB(t)
	slot := newTestSlot(t, db, 8)
	client := newTestClient(t, db, "Ada")

	seedBooking(t, db, &client.ID, slot.ID, "2021-03-01", models.BookingStatusVisited)
	upcoming := seedBooking(t, db, &client.ID, slot.ID, todayStr(), models.BookingStatusApproved)

	entries, err := BookingHistory(db, []uint{client.ID}, HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, upcoming.ID, entries[0].ID)
}

func TestSortHistoryPicksNearestUpcomingApproved(t *testing.T) {
	today := "2030-06-10"
	entries := []models.Booking{
		{ID: 1, Date: "2030-06-25", Status: models.BookingStatusApproved},
		{ID: 2, Date: "2030-06-12", Status: models.BookingStatusApproved},
		{ID: 3, Date: "2030-06-11", Status: models.BookingStatusSubmitted},
		{ID: 4, Date: "2030-06-01", Status: models.BookingStatusVisited},
	}

	sorted := sortHistory(entries, today)
	require.Len(t, sorted, 4)

	// The nearest upcoming approved booking leads even though later
	// dates exist; submitted bookings never take the lead slot.
	assert.Equal(t, uint(2), sorted[0].ID)
	assert.Equal(t, uint(1), sorted[1].ID)
	assert.Equal(t, uint(3), sorted[2].ID)
	assert.Equal(t, uint(4), sorted[3].ID)
}

func TestSortHistoryNoUpcoming(t *testing.T) {
	today := "2030-06-10"
	entries := []models.Booking{
		{ID: 1, Date: "2030-05-01", Status: models.BookingStatusVisited},
		{ID: 2, Date: "2030-05-20", Status: models.BookingStatusNoShow},
		{ID: 3, Date: "2030-05-20", Status: models.BookingStatusCancelled},
	}

	sorted := sortHistory(entries, today)
	require.Len(t, sorted, 3)
	assert.Equal(t, uint(3), sorted[0].ID)
	assert.Equal(t, uint(2), sorted[1].ID)
	assert.Equal(t, uint(1), sorted[2].ID)
}
