// Package panel implements the node the user touches: a keypad, a two-line
// display and the link to the controller.
//
// On first boot the panel asks for a new five-digit code twice, stores its
// provisioned flag and sends the code to the controller. After that it
// shows the main menu, where '+' changes the code and '-' opens the door.
// Both choices collect one code and wait, with no timeout, for the
// controller's verdict. The panel keeps no credential of its own. Its
// attempt counter follows the replies: negative replies advance it and a
// positive reply or the alarm clears it, so it stays in step with the
// controller's counter.
//
// While the controller runs the motor or the alarm, the panel runs the same
// sequence against a Nop actuator and updates the display at the same tick
// offsets.
package panel
