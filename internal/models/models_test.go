package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlineID_StringAndParse(t *testing.T) {
	id := RootID(1).Child(2).Child(3)
	assert.Equal(t, "1.2.3", id.String())
	assert.Equal(t, 3, id.Depth())
	assert.Equal(t, 3, id.Index())
	assert.Equal(t, "1.2", id.Parent().String())
	assert.Nil(t, RootID(4).Parent())

	parsed, err := ParseHeadlineID("1.2.3")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))

	for _, bad := range []string{"", "1..2", "0", "1.x", "-1"} {
		_, err := ParseHeadlineID(bad)
		assert.Error(t, err, bad)
	}
}

func TestHeadlineID_ChildDoesNotAlias(t *testing.T) {
	base := make(HeadlineID, 1, 4)
	base[0] = 1
	a := base.Child(1)
	b := base.Child(2)
	assert.Equal(t, "1.1", a.String())
	assert.Equal(t, "1.2", b.String())
}

func TestHeadlineID_Compare(t *testing.T) {
	ordered := []string{"1", "1.1", "1.1.1", "1.2", "2", "10"}
	for i := 0; i < len(ordered)-1; i++ {
		a, _ := ParseHeadlineID(ordered[i])
		b, _ := ParseHeadlineID(ordered[i+1])
		assert.Equal(t, -1, a.Compare(b), "%s < %s", ordered[i], ordered[i+1])
		assert.Equal(t, 1, b.Compare(a))
	}
}

func TestHeadlineID_JSON(t *testing.T) {
	h := Headline{ID: HeadlineID{2, 1}}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"2.1"`)

	var back Headline
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.ID.Equal(h.ID))
}

func TestDocumentID_Deterministic(t *testing.T) {
	a := DocumentID("/notes/a.org")
	assert.Equal(t, a, DocumentID("/notes/./a.org"))
	assert.NotEqual(t, a, DocumentID("/notes/b.org"))
}

func sampleDocument() *Document {
	return &Document{
		Headlines: []Headline{
			{ID: HeadlineID{1}, Level: 1, Children: []Headline{
				{ID: HeadlineID{1, 1}, Level: 2},
				{ID: HeadlineID{1, 2}, Level: 2},
			}},
			{ID: HeadlineID{2}, Level: 1},
		},
	}
}

func TestDocument_WalkAndFind(t *testing.T) {
	doc := sampleDocument()
	assert.Equal(t, []string{"1", "1.1", "1.2", "2"}, doc.HeadlineIDs())
	assert.Equal(t, 4, doc.HeadlineCount())

	h, ok := doc.FindHeadline("1.2")
	require.True(t, ok)
	assert.Equal(t, 2, h.Level)

	_, ok = doc.FindHeadline("3")
	assert.False(t, ok)

	p, ok := doc.Parent(HeadlineID{1, 2})
	require.True(t, ok)
	assert.Equal(t, "1", p.ID.String())

	_, ok = doc.Parent(HeadlineID{2})
	assert.False(t, ok)
	_, ok = doc.Parent(HeadlineID{5, 1})
	assert.False(t, ok)
}

func TestTimestamp_Format(t *testing.T) {
	hour, minute := 14, 30
	start := &Datetime{Year: 2023, Month: 5, Day: 10, Dayname: "Wed", Hour: &hour, Minute: &minute}
	end := &Datetime{Year: 2023, Month: 5, Day: 12, Dayname: "Fri"}
	endHour, endMinute := 15, 45
	sameDay := &Datetime{Year: 2023, Month: 5, Day: 10, Dayname: "Wed", Hour: &endHour, Minute: &endMinute}

	cases := []struct {
		ts   Timestamp
		want string
	}{
		{Timestamp{Kind: TimestampActive, Start: start}, "<2023-05-10 Wed 14:30>"},
		{Timestamp{Kind: TimestampInactive, Start: end}, "[2023-05-12 Fri]"},
		{Timestamp{Kind: TimestampActive, Start: end, Repeater: "+1w"}, "<2023-05-12 Fri +1w>"},
		{Timestamp{Kind: TimestampActiveRange, Start: start, End: end}, "<2023-05-10 Wed 14:30>--<2023-05-12 Fri>"},
		{Timestamp{Kind: TimestampInactiveRange, Start: start, End: sameDay, Repeater: ".+1d/3d"}, "[2023-05-10 Wed 14:30-15:45 .+1d/3d]"},
		{Timestamp{Kind: TimestampDiary, Diary: "diary-float t 4 2"}, "<%%(diary-float t 4 2)>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.ts.Format())
	}
	assert.True(t, (&Timestamp{Kind: TimestampDiary}).IsActive())
	assert.False(t, (&Timestamp{Kind: TimestampInactiveRange}).IsActive())
}

func TestPlanning_String(t *testing.T) {
	var p *Planning
	assert.True(t, p.IsEmpty())
	assert.Equal(t, "", p.String())

	p = &Planning{
		Deadline:  &Timestamp{Kind: TimestampActive, Start: &Datetime{Year: 2024, Month: 1, Day: 2}},
		Scheduled: &Timestamp{Kind: TimestampActive, Start: &Datetime{Year: 2024, Month: 1, Day: 1}},
	}
	assert.Equal(t, "SCHEDULED: <2024-01-01> DEADLINE: <2024-01-02>", p.String())
}

func TestDefaultTodoConfiguration(t *testing.T) {
	cfg := DefaultTodoConfiguration()
	assert.Equal(t, []string{"TODO", "IN-PROGRESS", "WAITING", "DONE", "CANCELLED"}, cfg.Keywords())

	st, ok := cfg.FindStatus("DONE")
	require.True(t, ok)
	assert.True(t, st.IsClosed())
	assert.Equal(t, uint32(100), st.Order)

	_, ok = cfg.FindStatus("NOPE")
	assert.False(t, ok)

	active, closed := cfg.Split()
	assert.Equal(t, []string{"TODO", "IN-PROGRESS", "WAITING"}, active)
	assert.Equal(t, []string{"DONE", "CANCELLED"}, closed)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state_type":"closed"`)
}

func TestUpdateInfo_IsEmpty(t *testing.T) {
	assert.True(t, UpdateInfo{}.IsEmpty())
	assert.False(t, UpdateInfo{Deleted: []string{"1"}}.IsEmpty())
	assert.False(t, UpdateInfo{Removed: true}.IsEmpty())
	assert.Equal(t, []string{"2", "1"}, UpdateInfo{New: []string{"2"}, Updated: []string{"1"}}.Changed())
}
