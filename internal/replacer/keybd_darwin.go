package replacer

import "github.com/micmonay/keybd_event"

// The key labelled Delete on a Mac keyboard erases backwards.
const vkBackspace = keybd_event.VK_DELETE
