package gateway

// Channel names one gateway operation. The set is fixed at compile time;
// anything else is rejected with ErrUnknownChannel.
type Channel string

const (
	ChannelGetTours        Channel = "get-tours"
	ChannelCreateTour      Channel = "create-tour"
	ChannelUpdateTour      Channel = "update-tour"
	ChannelDeleteTour      Channel = "delete-tour"
	ChannelGetProperties   Channel = "get-properties"
	ChannelCreateProperty  Channel = "create-property"
	ChannelUpdateProperty  Channel = "update-property"
	ChannelDeleteProperty  Channel = "delete-property"
	ChannelCleanupOldTours Channel = "cleanup-old-tours"
	ChannelGetSettings     Channel = "get-settings"
	ChannelUpdateSettings  Channel = "update-settings"
	ChannelDashboardStats  Channel = "get-dashboard-stats"
	ChannelWeeklyReport    Channel = "generate-weekly-report"
	ChannelWindowMinimize  Channel = "window-minimize"
	ChannelWindowMaximize  Channel = "window-maximize"
	ChannelWindowClose     Channel = "window-close"
	ChannelCheckForUpdates Channel = "check-for-updates"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{
	ChannelGetTours,
	ChannelCreateTour,
	ChannelUpdateTour,
	ChannelDeleteTour,
	ChannelGetProperties,
	ChannelCreateProperty,
	ChannelUpdateProperty,
	ChannelDeleteProperty,
	ChannelCleanupOldTours,
	ChannelGetSettings,
	ChannelUpdateSettings,
	ChannelDashboardStats,
	ChannelWeeklyReport,
	ChannelWindowMinimize,
	ChannelWindowMaximize,
	ChannelWindowClose,
	ChannelCheckForUpdates,
}

func (c Channel) IsValid() bool {
	for _, ch := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// FireAndForget channels return no result; their effects arrive as events.
func (c Channel) FireAndForget() bool {
	switch c {
	case ChannelWindowMinimize, ChannelWindowMaximize, ChannelWindowClose, ChannelCheckForUpdates:
		return true
	}
	return false
}

// ChannelInfo describes a channel for GET /api/v1/channels.
type ChannelInfo struct {
	Name          Channel `json:"name"`
	FireAndForget bool    `json:"fire_and_forget"`
}

func channelInfos() []ChannelInfo {
	out := make([]ChannelInfo, 0, len(Channels))
	for _, ch := range Channels {
		out = append(out, ChannelInfo{Name: ch, FireAndForget: ch.FireAndForget()})
	}
	return out
}
