package network

// Event names exchanged with clients. The names and payload field sets are
// part of the client contract and must not change.
const (
	EvtIdentify      = "identify"
	EvtAuthenticated = "authenticated"

	EvtRoomJoin  = "room:join"
	EvtRoomState = "room:state"
	EvtRoomLeave = "room:leave"
	EvtRoomReady = "room:ready"

	EvtPlayerJoined    = "player:joined"
	EvtPlayerLeft      = "player:left"
	EvtPlayerReady     = "player:ready"
	EvtPlayerCharacter = "player:character"
	EvtPlayerMove      = "player:move"
	EvtPlayerAttack    = "player:attack"
	EvtPlayerHit       = "player:hit"
	EvtPlayerDamaged   = "player:damaged"

	EvtHostChanged = "host:changed"
	EvtGameStart   = "game:start"
	EvtGameOver    = "game:over"

	EvtError = "error"
)
