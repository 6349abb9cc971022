/*
Package vma models the virtual memory areas (VMAs) of a checkpointed task and
condenses a task's VMA list into the minimized mapping list that still needs
literal mapping metadata after the task's memory has been moved into a pseudo
address space.

Only the vDSO and VVAR areas (“anchors”) cannot be represented inside a pseudo
address space; [Condense] keeps them unchanged and collapses every maximal run
of other areas into a single [Synthetic] placeholder area spanning the run.
*/
package vma
