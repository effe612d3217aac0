package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var ErrComandoInvalido = errors.New("comando inválido")

// ejecutarComando manda el pedido al kernel y escribe la respuesta en w
func ejecutarComando(cliente *utils.HTTPClient, w io.Writer, comando string, args []string) error {
	switch comando {
	case "programas":
		resp, err := pedir(cliente, utils.MensajeListarProgramas, nil)
		if err != nil {
			return err
		}
		lista, _ := resp["programas"].([]interface{})
		for _, p := range lista {
			fmt.Fprintln(w, p)
		}

	case "procesos":
		resp, err := pedir(cliente, utils.MensajeListarProcesos, nil)
		if err != nil {
			return err
		}
		lista, _ := resp["procesos"].([]interface{})
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PID\tNOMBRE\tPADRE\tESTADO\tHILOS\tPÁGINAS\tARCHIVOS")
		for _, p := range lista {
			m, _ := p.(map[string]interface{})
			fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
				m["pid"], m["nombre"], m["padre"], m["estado"], m["hilos"], m["paginas"], m["archivos_abiertos"])
		}
		return tw.Flush()

	case "iniciar":
		if len(args) != 1 {
			return fmt.Errorf("%w: iniciar <programa>", ErrComandoInvalido)
		}
		resp, err := pedir(cliente, utils.MensajeInicializarProceso, map[string]interface{}{"programa": args[0]})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s iniciado con PID %v\n", args[0], resp["pid"])

	case "dump":
		if len(args) != 1 {
			return fmt.Errorf("%w: dump <pid>", ErrComandoInvalido)
		}
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: pid %q", ErrComandoInvalido, args[0])
		}
		resp, err := pedir(cliente, utils.MensajeMemoryDump, map[string]interface{}{"pid": pid})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "dump en %v\n", resp["archivo"])

	case "memoria":
		resp, err := pedir(cliente, utils.MensajeEspacioLibre, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "marcos libres: %v de %v (%v bytes)\n", resp["marcos_libres"], resp["marcos_total"], resp["bytes_libres"])

	default:
		return fmt.Errorf("%w: %s", ErrComandoInvalido, comando)
	}
	return nil
}

// pedir envía el mensaje y convierte un status ERROR en error
func pedir(cliente *utils.HTTPClient, tipo int, datos map[string]interface{}) (map[string]interface{}, error) {
	resp, err := cliente.EnviarHTTPMensaje(tipo, utils.OperacionDefault, datos)
	if err != nil {
		return nil, err
	}
	m, ok := resp.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("respuesta inesperada del kernel: %T", resp)
	}
	if m["status"] != "OK" {
		return m, fmt.Errorf("el kernel respondió %v: %v", m["status"], m["mensaje"])
	}
	return m, nil
}
