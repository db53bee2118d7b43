package domain

// Flavor is a compute sizing template.
type Flavor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	VCPUs int    `json:"vcpus"`
	RAM   int    `json:"ram"`  // in MiB
	Disk  int    `json:"disk"` // in GB
}

// Image is a bootable disk image registered with the image service.
type Image struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}
