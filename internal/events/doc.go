// Package events implements the local notification bus.
//
// The Connection Manager emits a Notification for every recognized inbound
// message. Subscribers register handlers by notification name:
//   - dice_roll_result: a dice roll resolved by the server
//   - campaign_update: campaign state changed on the server
package events
