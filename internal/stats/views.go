package stats

import (
	"sort"

	"github.com/j-veylop/rdio-stats/internal/buckets"
	"github.com/j-veylop/rdio-stats/internal/models"
)

// HourlySeries expands the hour histogram into all 24 hours.
func HourlySeries(s *models.Summary) []models.HourCount {
	series := make([]models.HourCount, len(s.Hours))
	for hour, calls := range s.Hours {
		series[hour] = models.HourCount{Hour: hour, Calls: calls}
	}
	return series
}

// TopTalkgroups returns talkgroups by descending call count, ties ordered by
// key. A limit of zero or less returns all of them.
func TopTalkgroups(s *models.Summary, limit int) []models.TalkgroupCount {
	list := make([]models.TalkgroupCount, 0, len(s.Talkgroups))
	for key, calls := range s.Talkgroups {
		displayName, id := buckets.SplitTalkgroupKey(key)
		list = append(list, models.TalkgroupCount{
			Key:         key,
			DisplayName: displayName,
			ID:          id,
			Calls:       calls,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Calls != list[j].Calls {
			return list[i].Calls > list[j].Calls
		}
		return list[i].Key < list[j].Key
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
